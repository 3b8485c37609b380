package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/recoverydesk/esign/internal/outbox/domain"
)

// HandlerFunc processes one event type.
type HandlerFunc func(ctx context.Context, event *domain.OutboxEvent) error

// EventRouter dispatches events to the handler registered for their type.
type EventRouter struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

func NewEventRouter(logger *slog.Logger) *EventRouter {
	return &EventRouter{handlers: make(map[string]HandlerFunc), logger: logger}
}

// Handle registers h for eventType, replacing any previous handler.
func (r *EventRouter) Handle(eventType string, h HandlerFunc) {
	r.handlers[eventType] = h
}

// Process implements EventProcessor. Unknown event types fail so they end up
// marked failed rather than silently dropped.
func (r *EventRouter) Process(ctx context.Context, event *domain.OutboxEvent) error {
	h, ok := r.handlers[event.EventType]
	if !ok {
		r.logger.Warn("unknown event type", slog.String("event_type", event.EventType))
		return fmt.Errorf("no handler for event type %q", event.EventType)
	}
	return h(ctx, event)
}
