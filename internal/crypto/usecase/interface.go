// Package usecase manages document key versions and seals documents with them.
package usecase

import (
	"context"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
)

// DocumentKeyRepository persists document key versions.
type DocumentKeyRepository interface {
	Create(ctx context.Context, key *cryptoDomain.DocumentKey) error
	GetByVersion(ctx context.Context, version uint) (*cryptoDomain.DocumentKey, error)
	GetLatest(ctx context.Context) (*cryptoDomain.DocumentKey, error)
	List(ctx context.Context) ([]*cryptoDomain.DocumentKey, error)
}

// DocumentKeyUseCase manages the keyring and seals payloads under it.
type DocumentKeyUseCase interface {
	// Create generates the next key version. It becomes active immediately.
	Create(ctx context.Context) (*cryptoDomain.DocumentKey, error)

	List(ctx context.Context) ([]*cryptoDomain.DocumentKey, error)

	// Seal encrypts payload to the active key version and reports that version.
	Seal(ctx context.Context, payload []byte, alg cryptoDomain.Algorithm) ([]byte, uint, error)

	// Open decrypts an envelope sealed under keyVersion.
	Open(ctx context.Context, sealed []byte, keyVersion uint) ([]byte, error)
}
