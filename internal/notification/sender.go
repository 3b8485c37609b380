// Package notification delivers signing links and completion notices by email and
// SMS through a pluggable provider.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Email is a transactional email message.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// SMS is a transactional text message.
type SMS struct {
	To   string
	Text string
}

// Sender delivers messages and returns the provider's message ID.
type Sender interface {
	SendEmail(ctx context.Context, msg Email) (string, error)
	SendSMS(ctx context.Context, msg SMS) (string, error)
}

// ErrProviderRejected marks provider responses that will not succeed on retry.
var ErrProviderRejected = errors.New("provider rejected the message")

// ProviderError is a non-2xx provider response.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if retried.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Is matches ErrProviderRejected for non-temporary failures.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderRejected && !e.Temporary()
}
