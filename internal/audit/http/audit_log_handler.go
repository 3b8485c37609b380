// Package http provides the HTTP handler listing a case's audit trail.
package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	"github.com/recoverydesk/esign/internal/audit/http/dto"
	auditUseCase "github.com/recoverydesk/esign/internal/audit/usecase"
	"github.com/recoverydesk/esign/internal/httputil"
)

// AuditLogHandler handles HTTP requests for audit log operations.
type AuditLogHandler struct {
	auditLogUseCase auditUseCase.AuditLogUseCase
	logger          *slog.Logger
}

// NewAuditLogHandler creates a new audit log handler with required dependencies.
func NewAuditLogHandler(
	auditLogUseCase auditUseCase.AuditLogUseCase,
	logger *slog.Logger,
) *AuditLogHandler {
	return &AuditLogHandler{
		auditLogUseCase: auditLogUseCase,
		logger:          logger,
	}
}

// ListByCaseHandler returns the audit trail of one case, oldest first.
// GET /v1/cases/:case_id/audit-logs?offset=0&limit=50&from=2026-02-01T00:00:00Z&to=2026-02-14T23:59:59Z
// Both time boundaries are optional and inclusive.
func (h *AuditLogHandler) ListByCaseHandler(c *gin.Context) {
	caseID := strings.TrimSpace(c.Param("case_id"))
	if caseID == "" {
		httputil.HandleValidationErrorGin(c, auditDomain.ErrCaseIDRequired, h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	from, to, err := httputil.ParseTimeRange(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	auditLogs, err := h.auditLogUseCase.List(c.Request.Context(), auditDomain.Filter{
		CaseID:        caseID,
		CreatedAtFrom: from,
		CreatedAtTo:   to,
		Offset:        offset,
		Limit:         limit,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAuditLogsToListResponse(auditLogs))
}
