// Package http provides HTTP handlers for signature requests: issuance and
// delivery for case managers, the recipient portal endpoints, operator recovery
// and the completion webhook.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/httputil"
	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/http/dto"
	signatureUseCase "github.com/recoverydesk/esign/internal/signature/usecase"
	customValidation "github.com/recoverydesk/esign/internal/validation"
)

// SignatureRequestHandler handles HTTP requests for signature request operations.
type SignatureRequestHandler struct {
	tokenUseCase      signatureUseCase.TokenUseCase
	dispatchUseCase   signatureUseCase.DispatchUseCase
	completionUseCase signatureUseCase.CompletionUseCase
	logger            *slog.Logger
}

// NewSignatureRequestHandler creates a new signature request handler with required dependencies.
func NewSignatureRequestHandler(
	tokenUseCase signatureUseCase.TokenUseCase,
	dispatchUseCase signatureUseCase.DispatchUseCase,
	completionUseCase signatureUseCase.CompletionUseCase,
	logger *slog.Logger,
) *SignatureRequestHandler {
	return &SignatureRequestHandler{
		tokenUseCase:      tokenUseCase,
		dispatchUseCase:   dispatchUseCase,
		completionUseCase: completionUseCase,
		logger:            logger,
	}
}

func actorFrom(c *gin.Context) auditDomain.Actor {
	return auditDomain.Actor{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// IssueHandler issues a signature request and optionally sends its link.
// POST /v1/signature-requests
// Returns 201 Created. A failed delivery does not undo issuance; it is reported
// in delivery_error and can be retried through the send endpoint.
func (h *SignatureRequestHandler) IssueHandler(c *gin.Context) {
	var req dto.IssueSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	prefill, err := domain.DecodePrefill(domain.DocumentType(req.DocumentType), req.Prefill)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	ctx := c.Request.Context()
	actor := actorFrom(c)
	token, err := h.tokenUseCase.Issue(ctx, signatureUseCase.IssueInput{
		CaseID:     strings.TrimSpace(req.CaseID),
		CaseNumber: strings.TrimSpace(req.CaseNumber),
		Recipient:  req.Recipient.ToDomain(),
		Prefill:    prefill,
		Actor:      actor,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.IssueSignatureResponse{SignatureRequestResponse: dto.MapTokenToResponse(token)}
	if req.SendVia != "" {
		result, err := h.dispatchUseCase.Send(ctx, token.ID, domain.ContactMethod(req.SendVia), actor)
		if err != nil {
			h.logger.Warn("signing link not delivered at issuance",
				slog.String("token_id", token.ID),
				slog.String("method", req.SendVia),
				slog.Any("error", err),
			)
			response.DeliveryError = err.Error()
		} else {
			delivery := dto.MapDeliveryToResponse(result)
			response.Delivery = &delivery
			response.Status = string(domain.StatusSent)
		}
	}

	c.JSON(http.StatusCreated, response)
}

// SendHandler delivers or re-delivers a signing link.
// POST /v1/signature-requests/:token/send
func (h *SignatureRequestHandler) SendHandler(c *gin.Context) {
	var req dto.SendSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.dispatchUseCase.Send(
		c.Request.Context(),
		c.Param("token"),
		domain.ContactMethod(req.Method),
		actorFrom(c),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDeliveryToResponse(result))
}

// ValidateHandler reports what the signing portal should show for a token.
// GET /v1/signature-requests/:token
// Unknown tokens return 404 with the same body shape.
func (h *SignatureRequestHandler) ValidateHandler(c *gin.Context) {
	token, state, err := h.tokenUseCase.Validate(c.Request.Context(), c.Param("token"))
	if apperrors.Is(err, domain.ErrInvalidToken) {
		c.JSON(http.StatusNotFound, dto.TokenStateResponse{Message: dto.UnknownTokenMessage})
		return
	}
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTokenStateToResponse(token, state))
}

// AccessHandler records that the recipient opened the form.
// POST /v1/signature-requests/:token/access
func (h *SignatureRequestHandler) AccessHandler(c *gin.Context) {
	token, err := h.completionUseCase.MarkAccessed(c.Request.Context(), c.Param("token"), actorFrom(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTokenToResponse(token))
}

// RetryGenerationHandler regenerates the document of a token whose generation failed.
// POST /v1/signature-requests/:token/retry-generation
func (h *SignatureRequestHandler) RetryGenerationHandler(c *gin.Context) {
	result, err := h.completionUseCase.RetryGeneration(c.Request.Context(), c.Param("token"), actorFrom(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCompletionToResponse(result))
}

// ListByCaseHandler lists the signature requests of a case, newest first.
// GET /v1/cases/:case_id/signature-requests
func (h *SignatureRequestHandler) ListByCaseHandler(c *gin.Context) {
	caseID := strings.TrimSpace(c.Param("case_id"))
	if caseID == "" {
		httputil.HandleValidationErrorGin(c, domain.ErrCaseRequired, h.logger)
		return
	}

	tokens, err := h.tokenUseCase.ListByCase(c.Request.Context(), caseID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTokensToListResponse(tokens))
}

// SubmitFormHandler completes a token from the internally hosted form.
// POST /v1/forms/:token/submit
func (h *SignatureRequestHandler) SubmitFormHandler(c *gin.Context) {
	var req dto.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	submissionID := requestid.Get(c)
	if submissionID == "" {
		submissionID = uuid.Must(uuid.NewV7()).String()
	}

	result, err := h.completionUseCase.HandleSubmission(c.Request.Context(), &domain.Submission{
		SubmissionID:   submissionID,
		FormID:         "internal",
		Token:          c.Param("token"),
		SignatureImage: req.SignatureImage,
		SignerName:     req.SignerName,
		TermsAccepted:  req.TermsAccepted,
		Answers:        req.Answers,
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCompletionToResponse(result))
}

// VerifyDocumentHandler re-hashes a stored document.
// GET /v1/documents/:id/verify?decrypt=true
func (h *SignatureRequestHandler) VerifyDocumentHandler(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid document id: %w", err), h.logger)
		return
	}

	decrypt := false
	if raw := c.Query("decrypt"); raw != "" {
		decrypt, err = strconv.ParseBool(raw)
		if err != nil {
			httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid decrypt parameter: must be a boolean"), h.logger)
			return
		}
	}

	verification, err := h.completionUseCase.VerifyDocument(c.Request.Context(), documentID, decrypt)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapVerificationToResponse(verification))
}
