package domain

import (
	"github.com/recoverydesk/esign/internal/errors"
)

var (
	// ErrUnsupportedAlgorithm indicates an unknown AEAD algorithm.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates key material of the wrong length.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates that authenticated decryption failed.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrInvalidEnvelope indicates bytes that are not a sealed document envelope.
	ErrInvalidEnvelope = errors.Wrap(errors.ErrInvalidInput, "invalid sealed envelope")

	// ErrKeyVersionMismatch indicates an envelope sealed under another key version.
	ErrKeyVersionMismatch = errors.Wrap(errors.ErrInvalidInput, "envelope key version mismatch")

	// ErrDocumentKeyNotFound indicates that no document key exists for a version.
	ErrDocumentKeyNotFound = errors.Wrap(errors.ErrNotFound, "document key not found")

	// ErrDocumentKeyExists indicates a concurrent creation of the same key version.
	ErrDocumentKeyExists = errors.Wrap(errors.ErrConflict, "document key version already exists")
)
