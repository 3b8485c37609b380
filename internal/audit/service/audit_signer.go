// Package service signs audit entries so tampering with stored rows is detectable.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
)

const signingKeyInfo = "esign-audit-log-signing-v1"

// AuditSigner computes and checks HMAC-SHA256 signatures over audit entries.
type AuditSigner interface {
	Sign(entry *auditDomain.AuditLog) ([]byte, error)
	Verify(entry *auditDomain.AuditLog) error
}

type auditSigner struct {
	signingKey []byte
}

// NewAuditSigner derives the HMAC key from secret with HKDF-SHA256.
func NewAuditSigner(secret []byte) (AuditSigner, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("audit signing key must be at least 16 bytes, got %d", len(secret))
	}

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(signingKeyInfo)), signingKey); err != nil {
		return nil, fmt.Errorf("failed to derive audit signing key: %w", err)
	}
	return &auditSigner{signingKey: signingKey}, nil
}

// canonicalize encodes the signed fields with length prefixes so no two
// different entries share an encoding.
func canonicalize(entry *auditDomain.AuditLog) ([]byte, error) {
	buf := make([]byte, 0, 512)
	buf = append(buf, entry.ID[:]...)
	buf = appendLengthPrefixed(buf, []byte(entry.CaseID))
	buf = appendLengthPrefixed(buf, []byte(entry.TokenID))
	buf = appendLengthPrefixed(buf, []byte(entry.Action))
	buf = appendLengthPrefixed(buf, []byte(entry.ActorIP))
	buf = appendLengthPrefixed(buf, []byte(entry.ActorUserAgent))

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		// map keys are sorted by encoding/json
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}
	buf = appendLengthPrefixed(buf, metadata)

	buf = binary.BigEndian.AppendUint64(buf, uint64(entry.CreatedAt.UnixMicro()))
	return buf, nil
}

func appendLengthPrefixed(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func (a *auditSigner) Sign(entry *auditDomain.AuditLog) ([]byte, error) {
	canonical, err := canonicalize(entry)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, a.signingKey)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

func (a *auditSigner) Verify(entry *auditDomain.AuditLog) error {
	if !entry.IsSigned || len(entry.Signature) == 0 {
		return auditDomain.ErrSignatureMissing
	}

	expected, err := a.Sign(entry)
	if err != nil {
		return err
	}
	if !hmac.Equal(entry.Signature, expected) {
		return auditDomain.ErrSignatureInvalid
	}
	return nil
}
