package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const brevoRequestTimeout = 15 * time.Second

// BrevoConfig configures the Brevo transactional API client.
type BrevoConfig struct {
	APIKey      string
	BaseURL     string
	SenderEmail string
	SenderName  string
	SMSSender   string
}

// BrevoSender sends email and SMS through the Brevo transactional API.
type BrevoSender struct {
	cfg    BrevoConfig
	client *http.Client
}

// NewBrevoSender creates a Brevo client on a pooled HTTP transport.
func NewBrevoSender(cfg BrevoConfig) *BrevoSender {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = brevoRequestTimeout
	return NewBrevoSenderWithClient(cfg, client)
}

// NewBrevoSenderWithClient creates a Brevo client using client for transport.
func NewBrevoSenderWithClient(cfg BrevoConfig, client *http.Client) *BrevoSender {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &BrevoSender{cfg: cfg, client: client}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoEmailRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type brevoSMSRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Type      string `json:"type"`
}

type brevoResponse struct {
	MessageID json.RawMessage `json:"messageId"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
}

// SendEmail posts to /smtp/email.
func (b *BrevoSender) SendEmail(ctx context.Context, msg Email) (string, error) {
	req := brevoEmailRequest{
		Sender:      brevoContact{Email: b.cfg.SenderEmail, Name: b.cfg.SenderName},
		To:          []brevoContact{{Email: msg.To, Name: msg.ToName}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}
	return b.post(ctx, "/smtp/email", req)
}

// SendSMS posts to /transactionalSMS/sms. Brevo expects the number without a
// leading plus or spaces.
func (b *BrevoSender) SendSMS(ctx context.Context, msg SMS) (string, error) {
	req := brevoSMSRequest{
		Sender:    b.cfg.SMSSender,
		Recipient: normalizePhone(msg.To),
		Content:   msg.Text,
		Type:      "transactional",
	}
	return b.post(ctx, "/transactionalSMS/sms", req)
}

func (b *BrevoSender) post(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("api-key", b.cfg.APIKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}

	var out brevoResponse
	if len(raw) > 0 {
		// error bodies are not always JSON
		_ = json.Unmarshal(raw, &out)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		message := out.Message
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Code: out.Code, Message: message}
	}

	return strings.Trim(string(out.MessageID), `"`), nil
}

func normalizePhone(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
