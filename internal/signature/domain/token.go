package domain

import (
	"strings"
	"time"
)

// Recipient is the person asked to sign. At least one of Email or Phone is set.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Has reports whether the recipient can be reached through method.
func (r Recipient) Has(method ContactMethod) bool {
	switch method {
	case ContactMethodEmail:
		return strings.TrimSpace(r.Email) != ""
	case ContactMethodSMS:
		return strings.TrimSpace(r.Phone) != ""
	default:
		return false
	}
}

// Token is the capability a recipient uses to complete one document for one case.
// The ID is random and carries no case or document information.
type Token struct {
	ID           string
	CaseID       string
	CaseNumber   string
	DocumentType DocumentType
	Recipient    Recipient
	Prefill      Prefill
	FormLink     string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time
	AccessedAt   *time.Time
	CompletedAt  *time.Time
}

// NewToken builds a pending token expiring TokenTTL after now.
func NewToken(id, caseID, caseNumber string, recipient Recipient, prefill Prefill, now time.Time) *Token {
	if caseNumber == "" {
		caseNumber = caseID
	}
	return &Token{
		ID:           id,
		CaseID:       caseID,
		CaseNumber:   caseNumber,
		DocumentType: prefill.DocumentType(),
		Recipient:    recipient,
		Prefill:      prefill,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(TokenTTL),
	}
}

// IsExpired reports whether now is past the token's expiry.
func (t *Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsActive reports whether the token is non-terminal.
func (t *Token) IsActive() bool {
	return t.Status.IsActive()
}

// TokenState is the recipient-facing view of a token, one message per state.
type TokenState struct {
	IsValid     bool
	IsExpired   bool
	IsCompleted bool
	IsFailed    bool
	Message     string
}

// State evaluates the token at now. Expiry is computed lazily, so an active token
// past its TTL reports expired even before any reaper has run.
func (t *Token) State(now time.Time) TokenState {
	switch {
	case t.Status == StatusCompleted:
		return TokenState{IsCompleted: true, Message: "This document has already been signed. Thank you."}
	case t.Status == StatusFailed:
		return TokenState{IsFailed: true, Message: "Your signature was received but the document could not be produced. Our team will contact you."}
	case t.Status == StatusExpired || t.IsExpired(now):
		return TokenState{IsExpired: true, Message: "This signing link has expired. Please contact us for a new link."}
	default:
		return TokenState{IsValid: true, Message: "This signing link is valid."}
	}
}
