package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DocumentKey is one version of the asymmetric key pair that seals documents.
// The highest version is active for sealing; older versions stay available for
// opening documents sealed under them.
type DocumentKey struct {
	ID                  uuid.UUID
	Version             uint
	Algorithm           string
	PublicKey           []byte
	EncryptedPrivateKey []byte
	KMSKeyID            string
	CreatedAt           time.Time
}

// KMSKeeper wraps and unwraps key material. *secrets.Keeper implements it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
