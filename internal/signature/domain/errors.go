package domain

import (
	"github.com/recoverydesk/esign/internal/errors"
)

// Issuance and input validation errors.
var (
	ErrCaseRequired         = errors.Wrap(errors.ErrInvalidInput, "case id is required")
	ErrInvalidDocumentType  = errors.Wrap(errors.ErrInvalidInput, "unsupported document type")
	ErrRecipientRequired    = errors.Wrap(errors.ErrInvalidInput, "recipient email or phone is required")
	ErrInvalidContactMethod = errors.Wrap(errors.ErrInvalidInput, "contact method must be email or sms")
	ErrContactMissing       = errors.Wrap(errors.ErrInvalidInput, "recipient has no contact for the requested method")
	ErrInvalidPrefill       = errors.Wrap(errors.ErrInvalidInput, "invalid prefill data")
	ErrSignatureMissing     = errors.Wrap(errors.ErrInvalidInput, "signature image is required")
	ErrSignerNameMissing    = errors.Wrap(errors.ErrInvalidInput, "signer name is required")
	ErrTermsNotAccepted     = errors.Wrap(errors.ErrInvalidInput, "terms must be accepted")
	ErrFormLinkRequired     = errors.Wrap(errors.ErrInvalidInput, "form link is required")
)

// Token lifecycle errors.
var (
	// ErrPendingTokenExists is returned when a non-terminal token already exists for the case and document type.
	ErrPendingTokenExists = errors.Wrap(errors.ErrConflict, "a signature request is already pending for this document")

	// ErrTokenNotFound is returned by lookups that address a token directly.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "signature token not found")

	// ErrInvalidToken is returned when a submission carries no token or an unknown one.
	ErrInvalidToken = errors.Wrap(errors.ErrNotFound, "invalid signature token")

	ErrTokenExpired         = errors.Wrap(errors.ErrGone, "this signing link has expired")
	ErrAlreadyCompleted     = errors.Wrap(errors.ErrConflict, "this document has already been signed")
	ErrTokenNotUsable       = errors.Wrap(errors.ErrConflict, "this signing link can no longer be used")
	ErrTokenImmutable       = errors.Wrap(errors.ErrConflict, "signature token can no longer be modified")
	ErrStatusConflict       = errors.Wrap(errors.ErrConflict, "signature token status changed concurrently")
	ErrSubmissionInProgress = errors.Wrap(errors.ErrConflict, "a submission for this token is already being processed")
	ErrNothingToRetry       = errors.Wrap(errors.ErrConflict, "signature token has no failed document to regenerate")
	ErrRecordNotFound       = errors.Wrap(errors.ErrNotFound, "signature record not found")
	ErrDocumentNotFound     = errors.Wrap(errors.ErrNotFound, "document not found")
	ErrDocumentExists       = errors.Wrap(errors.ErrConflict, "a document already exists for this token")
)

// Processing errors. These surface as internal failures.
var (
	ErrDeliveryFailed   = errors.Wrap(errors.ErrUnavailable, "notification delivery failed")
	ErrGenerationFailed = errors.New("document generation failed")
	ErrEncryptionFailed = errors.New("document encryption failed")
	ErrStorageFailed    = errors.New("document storage failed")
)
