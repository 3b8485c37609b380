package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/httputil"
	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/http/dto"
	signatureUseCase "github.com/recoverydesk/esign/internal/signature/usecase"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
	SignatureHeader = "X-Signature"

	maxWebhookBodyBytes = 10 << 20
	maxMultipartMemory  = 8 << 20
)

// ErrInvalidWebhookSignature is returned when the body HMAC does not verify.
var ErrInvalidWebhookSignature = apperrors.Wrap(apperrors.ErrUnauthorized, "invalid webhook signature")

// submission metadata sent by the form provider next to the answers
var webhookMetaFields = map[string]bool{
	"formID":       true,
	"submissionID": true,
	"rawRequest":   true,
	"pretty":       true,
	"ip":           true,
	"username":     true,
	"type":         true,
	"formTitle":    true,
	"event_id":     true,
	"slug":         true,
	"webhookURL":   true,
}

// WebhookConfig names the submission fields that carry the completion data.
type WebhookConfig struct {
	// Secret enables X-Signature verification when non-empty.
	Secret          string
	TokenField      string
	SignatureField  string
	SignerNameField string
	TermsField      string
}

// WebhookHandler receives completed hosted-form submissions.
type WebhookHandler struct {
	completionUseCase signatureUseCase.CompletionUseCase
	config            WebhookConfig
	logger            *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with required dependencies.
func NewWebhookHandler(
	completionUseCase signatureUseCase.CompletionUseCase,
	config WebhookConfig,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		completionUseCase: completionUseCase,
		config:            config,
		logger:            logger,
	}
}

// JotFormHandler completes the token embedded in a hosted-form submission.
// POST /v1/webhooks/jotform - accepts JSON, urlencoded and multipart bodies.
// Redelivery of a completed submission returns 200 with status "duplicate".
func (h *WebhookHandler) JotFormHandler(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("failed to read webhook body: %w", err), h.logger)
		return
	}

	if h.config.Secret != "" && !VerifyWebhookSignature(h.config.Secret, body, c.GetHeader(SignatureHeader)) {
		httputil.HandleErrorGin(c, ErrInvalidWebhookSignature, h.logger)
		return
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	submission, err := h.parseSubmission(c, body)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	result, err := h.completionUseCase.HandleSubmission(c.Request.Context(), submission)
	if err != nil {
		h.logger.Warn("webhook submission rejected",
			slog.String("submission_id", submission.SubmissionID),
			slog.String("form_id", submission.FormID),
			slog.Bool("has_token", submission.Token != ""),
			slog.Any("error", err),
		)
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCompletionToResponse(result))
}

// VerifyWebhookSignature reports whether signature is the hex HMAC-SHA256 of body
// under secret.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	given, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(given) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(given, mac.Sum(nil))
}

// parseSubmission flattens the provider payload and picks the configured fields.
func (h *WebhookHandler) parseSubmission(c *gin.Context, body []byte) (*domain.Submission, error) {
	fields, err := decodeWebhookFields(c, body)
	if err != nil {
		return nil, err
	}

	answers := fields
	if raw := fields["rawRequest"]; raw != "" {
		answers, err = decodeJSONFields([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid rawRequest: %w", err)
		}
	}

	tokenKey, token := lookupField(answers, h.config.TokenField)
	signatureKey, signature := lookupField(answers, h.config.SignatureField)
	nameKey, signerName := lookupField(answers, h.config.SignerNameField)
	termsKey, terms := lookupField(answers, h.config.TermsField)

	consumed := map[string]bool{tokenKey: true, signatureKey: true, nameKey: true, termsKey: true}
	extra := make(map[string]string)
	for key, value := range answers {
		if consumed[key] || webhookMetaFields[key] || value == "" {
			continue
		}
		extra[key] = value
	}

	ip := fields["ip"]
	if ip == "" {
		ip = c.ClientIP()
	}

	return &domain.Submission{
		SubmissionID:   fields["submissionID"],
		FormID:         fields["formID"],
		Token:          strings.TrimSpace(token),
		SignatureImage: signature,
		SignerName:     strings.TrimSpace(signerName),
		TermsAccepted:  isAccepted(terms),
		Answers:        extra,
		IPAddress:      ip,
		UserAgent:      c.Request.UserAgent(),
	}, nil
}

func decodeWebhookFields(c *gin.Context, body []byte) (map[string]string, error) {
	mediaType, _, err := mime.ParseMediaType(c.ContentType())
	if err != nil && c.ContentType() != "" {
		return nil, fmt.Errorf("invalid content type: %w", err)
	}

	switch mediaType {
	case "application/json", "":
		return decodeJSONFields(body)
	case "multipart/form-data":
		if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		return firstValues(c.Request.MultipartForm.Value), nil
	case "application/x-www-form-urlencoded":
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		return firstValues(c.Request.PostForm), nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func firstValues(values map[string][]string) map[string]string {
	fields := make(map[string]string, len(values))
	for key, v := range values {
		if len(v) > 0 {
			fields[key] = v[0]
		}
	}
	return fields
}

// decodeJSONFields flattens a JSON object into strings. Compound answers such
// as {"first": "Jane", "last": "Doe"} are joined with spaces in key order.
func decodeJSONFields(body []byte) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		fields[key] = flatten(value)
	}
	return fields, nil
}

func flatten(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			if s := flatten(v[key]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// lookupField finds name in fields, either verbatim or as the suffix of a
// provider-qualified key such as "q12_signature_token".
func lookupField(fields map[string]string, name string) (string, string) {
	if name == "" {
		return "", ""
	}
	if value, ok := fields[name]; ok {
		return name, value
	}

	var matches []string
	for key := range fields {
		if strings.HasSuffix(key, "_"+name) {
			matches = append(matches, key)
		}
	}
	if len(matches) == 0 {
		return "", ""
	}
	sort.Strings(matches)
	return matches[0], fields[matches[0]]
}

// isAccepted interprets a terms checkbox. A ticked checkbox carries its label,
// so any value that is not explicitly negative counts as acceptance.
func isAccepted(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
