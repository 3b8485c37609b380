// Package service implements the cryptographic primitives behind document
// sealing: AEAD ciphers, the KMS keeper used to wrap private keys, and the
// envelope sealer that binds a document to a document key version.
package service

import (
	"context"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
)

// AEAD encrypts and decrypts with a random nonce per call.
type AEAD interface {
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager creates AEAD ciphers from a 32-byte key.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KMSService opens KMS keepers from gocloud.dev secrets URIs.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

// Sealer seals document payloads to a document key version and opens them again.
type Sealer interface {
	Seal(payload []byte, alg cryptoDomain.Algorithm, keyVersion uint, publicKey []byte) ([]byte, error)
	Open(sealed []byte, keyVersion uint, publicKey, privateKey []byte) ([]byte, error)
}
