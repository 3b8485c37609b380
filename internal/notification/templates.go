package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// SigningRequest is the data rendered into a signing link notification.
type SigningRequest struct {
	RecipientName string
	DocumentTitle string
	CaseNumber    string
	Link          string
	ExpiresAt     time.Time
}

// CompletionNotice is the data rendered into a completion notification.
type CompletionNotice struct {
	RecipientName string
	DocumentTitle string
	CaseNumber    string
	SignedAt      time.Time
}

var signingRequestTemplate = template.Must(template.New("signing_request").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
<p>Dear {{if .RecipientName}}{{.RecipientName}}{{else}}customer{{end}},</p>
<p>Please review and sign your <strong>{{.DocumentTitle}}</strong> for case {{.CaseNumber}}.</p>
<p><a href="{{.Link}}" style="display: inline-block; padding: 10px 18px; background: #1a56db; color: #fff; text-decoration: none; border-radius: 4px;">Review and sign</a></p>
<p>This link expires on {{.ExpiresAt.UTC.Format "2 January 2006 at 15:04 MST"}}. If it has expired, please contact us for a new one.</p>
</body>
</html>
`))

var completionTemplate = template.Must(template.New("completion").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
<p>Dear {{if .RecipientName}}{{.RecipientName}}{{else}}customer{{end}},</p>
<p>Thank you. Your <strong>{{.DocumentTitle}}</strong> for case {{.CaseNumber}} was signed on {{.SignedAt.UTC.Format "2 January 2006 at 15:04 MST"}}.</p>
<p>A copy has been securely stored on your case file.</p>
</body>
</html>
`))

// SigningRequestEmail renders the email carrying a signing link.
func SigningRequestEmail(to string, req SigningRequest) (Email, error) {
	var buf bytes.Buffer
	if err := signingRequestTemplate.Execute(&buf, req); err != nil {
		return Email{}, fmt.Errorf("failed to render signing request email: %w", err)
	}
	return Email{
		To:      to,
		ToName:  req.RecipientName,
		Subject: fmt.Sprintf("Please sign your %s (case %s)", req.DocumentTitle, req.CaseNumber),
		HTML:    buf.String(),
	}, nil
}

// SigningRequestSMS renders the text message carrying a signing link.
func SigningRequestSMS(to string, req SigningRequest) SMS {
	return SMS{
		To: to,
		Text: fmt.Sprintf(
			"Please sign your %s for case %s: %s (expires %s)",
			req.DocumentTitle, req.CaseNumber, req.Link, req.ExpiresAt.UTC().Format("02 Jan 15:04 MST"),
		),
	}
}

// CompletionEmail renders the confirmation sent after a document is signed.
func CompletionEmail(to string, notice CompletionNotice) (Email, error) {
	var buf bytes.Buffer
	if err := completionTemplate.Execute(&buf, notice); err != nil {
		return Email{}, fmt.Errorf("failed to render completion email: %w", err)
	}
	return Email{
		To:      to,
		ToName:  notice.RecipientName,
		Subject: fmt.Sprintf("Your %s has been signed (case %s)", notice.DocumentTitle, notice.CaseNumber),
		HTML:    buf.String(),
	}, nil
}

// CompletionSMS renders the text confirmation sent after a document is signed.
func CompletionSMS(to string, notice CompletionNotice) SMS {
	return SMS{
		To:   to,
		Text: fmt.Sprintf("Thank you. Your %s for case %s has been signed.", notice.DocumentTitle, notice.CaseNumber),
	}
}
