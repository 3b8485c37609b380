// Package service provides the pure building blocks of the signature workflow:
// token generation, signing link construction and parsing, PDF rendering and
// retry policies.
package service

import (
	"context"

	"github.com/recoverydesk/esign/internal/signature/domain"
)

// TokenGenerator creates opaque signature token identifiers.
type TokenGenerator interface {
	Generate() (string, error)
	Validate(token string) error
}

// LinkBuilder maps a document type, prefill snapshot and token to a signing URL and back.
type LinkBuilder interface {
	BuildLink(documentType domain.DocumentType, prefill domain.Prefill, token string) (string, error)
	ParseLink(link string) (*ParsedLink, error)
}

// DocumentGenerator renders the signed document.
type DocumentGenerator interface {
	Generate(ctx context.Context, input *DocumentInput) ([]byte, error)
}
