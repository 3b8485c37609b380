// Package domain defines the signature request domain: tokens issued per case and
// document type, the prefill snapshot carried by each token, captured signatures
// and the sealed documents produced on completion.
package domain

import (
	"time"

	"github.com/recoverydesk/esign/internal/errors"
)

// TokenTTL is the fixed lifetime of a signature token.
const TokenTTL = 72 * time.Hour

// DocumentType identifies the form a recipient is asked to sign.
type DocumentType string

const (
	DocumentTypeClaims           DocumentType = "claims"
	DocumentTypeAuthorityToAct   DocumentType = "authority-to-act"
	DocumentTypeNotAtFaultRental DocumentType = "not-at-fault-rental"
	DocumentTypeCertisRental     DocumentType = "certis-rental"
	DocumentTypeDirectionToPay   DocumentType = "direction-to-pay"
)

// DocumentTypes lists every supported document type in display order.
var DocumentTypes = []DocumentType{
	DocumentTypeClaims,
	DocumentTypeAuthorityToAct,
	DocumentTypeNotAtFaultRental,
	DocumentTypeCertisRental,
	DocumentTypeDirectionToPay,
}

var documentTypeMeta = map[DocumentType]struct {
	title string
	route string
}{
	DocumentTypeClaims:           {title: "Claims Form", route: "claims-form"},
	DocumentTypeAuthorityToAct:   {title: "Authority to Act", route: "authority-to-act-form"},
	DocumentTypeNotAtFaultRental: {title: "Not-at-Fault Rental Agreement", route: "naf-rental-form"},
	DocumentTypeCertisRental:     {title: "Certis Rental Agreement", route: "certis-rental-form"},
	DocumentTypeDirectionToPay:   {title: "Direction to Pay", route: "direction-to-pay-form"},
}

// ParseDocumentType validates s against the closed set of document types.
func ParseDocumentType(s string) (DocumentType, error) {
	d := DocumentType(s)
	if !d.Valid() {
		return "", errors.Wrapf(ErrInvalidDocumentType, "%q", s)
	}
	return d, nil
}

// DocumentTypeForRoute returns the document type served under an internal form route.
func DocumentTypeForRoute(route string) (DocumentType, bool) {
	for d, meta := range documentTypeMeta {
		if meta.route == route {
			return d, true
		}
	}
	return "", false
}

// Valid reports whether d is a supported document type.
func (d DocumentType) Valid() bool {
	_, ok := documentTypeMeta[d]
	return ok
}

// Title is the human readable name used in documents and notifications.
func (d DocumentType) Title() string {
	return documentTypeMeta[d].title
}

// Route is the path segment of the internally hosted form.
func (d DocumentType) Route() string {
	return documentTypeMeta[d].route
}

// Status is the lifecycle state of a signature token.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusAccessed  Status = "accessed"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
)

// ActiveStatuses are the non-terminal statuses. At most one token per case and
// document type may hold one of them.
var ActiveStatuses = []Status{StatusPending, StatusSent, StatusAccessed}

// IsActive reports whether s is non-terminal.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusSent || s == StatusAccessed
}

// IsTerminal reports whether no regular transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusSent, StatusAccessed, StatusCompleted, StatusExpired, StatusFailed},
	StatusSent:     {StatusAccessed, StatusCompleted, StatusExpired, StatusFailed},
	StatusAccessed: {StatusCompleted, StatusExpired, StatusFailed},
	// Operator recovery of a document whose generation failed.
	StatusFailed: {StatusCompleted},
	// A signature captured before the deadline is still turned into a document.
	StatusExpired: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a token may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ContactMethod selects the delivery channel of a signing link.
type ContactMethod string

const (
	ContactMethodEmail ContactMethod = "email"
	ContactMethodSMS   ContactMethod = "sms"
)

// ParseContactMethod validates s as a delivery channel.
func ParseContactMethod(s string) (ContactMethod, error) {
	switch ContactMethod(s) {
	case ContactMethodEmail, ContactMethodSMS:
		return ContactMethod(s), nil
	default:
		return "", errors.Wrapf(ErrInvalidContactMethod, "%q", s)
	}
}
