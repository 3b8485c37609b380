// Package http provides the HTTP server, its router and shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditHTTP "github.com/recoverydesk/esign/internal/audit/http"
	"github.com/recoverydesk/esign/internal/config"
	"github.com/recoverydesk/esign/internal/metrics"
	signatureHTTP "github.com/recoverydesk/esign/internal/signature/http"
)

// Server represents the HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server. Routes are registered by SetupRouter.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers middleware and routes.
//
// Case-manager and operator routes live under /v1/signature-requests, /v1/cases
// and /v1/documents. Recipient-facing routes (token validation, access ping,
// internal form submission) and the form provider webhook are rate limited per
// client IP when enabled.
func (s *Server) SetupRouter(
	cfg *config.Config,
	signatureHandler *signatureHTTP.SignatureRequestHandler,
	webhookHandler *signatureHTTP.WebhookHandler,
	auditLogHandler *auditHTTP.AuditLogHandler,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	var public []gin.HandlerFunc
	if cfg.RateLimitPublicEnabled {
		public = append(public, RateLimitMiddleware(
			cfg.RateLimitPublicRequestsPerSec,
			cfg.RateLimitPublicBurst,
			s.logger,
		))
	}

	v1 := router.Group("/v1")
	{
		requests := v1.Group("/signature-requests")
		{
			requests.POST("", signatureHandler.IssueHandler)
			requests.POST("/:token/send", signatureHandler.SendHandler)
			requests.POST("/:token/retry-generation", signatureHandler.RetryGenerationHandler)

			portal := requests.Group("", public...)
			portal.GET("/:token", signatureHandler.ValidateHandler)
			portal.POST("/:token/access", signatureHandler.AccessHandler)
		}

		cases := v1.Group("/cases/:case_id")
		{
			cases.GET("/signature-requests", signatureHandler.ListByCaseHandler)
			cases.GET("/audit-logs", auditLogHandler.ListByCaseHandler)
		}

		v1.GET("/documents/:id/verify", signatureHandler.VerifyDocumentHandler)

		forms := v1.Group("/forms", public...)
		forms.POST("/:token/submit", signatureHandler.SubmitFormHandler)

		webhooks := v1.Group("/webhooks", public...)
		webhooks.POST("/jotform", webhookHandler.JotFormHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured: call SetupRouter first")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready only when the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	database := "ok"
	if s.db == nil || s.db.PingContext(ctx) != nil {
		database = "error"
	}

	if database != "ok" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": database},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": database},
	})
}
