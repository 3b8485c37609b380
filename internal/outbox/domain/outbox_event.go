// Package domain defines transactional outbox events: work recorded in the
// database and carried out later by the outbox worker.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

const (
	// EventTypeAuditLogAppend re-applies an audit entry whose direct write failed.
	EventTypeAuditLogAppend = "audit_log.append"

	// EventTypeSignatureCompleted sends the completion notification for a signed document.
	EventTypeSignatureCompleted = "signature.completed"
)

type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     string
	Status      OutboxEventStatus
	Retries     int
	LastError   *string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOutboxEvent creates a pending event with payload encoded as JSON.
func NewOutboxEvent(eventType string, payload any) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:        uuid.Must(uuid.NewV7()),
		EventType: eventType,
		Payload:   string(data),
		Status:    OutboxEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DecodePayload unmarshals the event payload into v.
func (e *OutboxEvent) DecodePayload(v any) error {
	return json.Unmarshal([]byte(e.Payload), v)
}
