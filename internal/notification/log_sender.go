package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogSender writes messages to the log instead of delivering them. It is the
// default provider for local development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendEmail logs the email and returns a synthetic message ID.
func (l *LogSender) SendEmail(ctx context.Context, msg Email) (string, error) {
	id := "log-" + uuid.Must(uuid.NewV7()).String()
	l.logger.InfoContext(ctx, "email notification",
		slog.String("message_id", id),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("html_bytes", len(msg.HTML)),
	)
	return id, nil
}

// SendSMS logs the text message and returns a synthetic message ID.
func (l *LogSender) SendSMS(ctx context.Context, msg SMS) (string, error) {
	id := "log-" + uuid.Must(uuid.NewV7()).String()
	l.logger.InfoContext(ctx, "sms notification",
		slog.String("message_id", id),
		slog.String("to", msg.To),
		slog.String("text", msg.Text),
	)
	return id, nil
}
