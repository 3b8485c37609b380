package service

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
)

const dataKeySize = 32

// GenerateKeyPair creates a new X25519 key pair for a document key version.
func GenerateKeyPair() (publicKey, privateKey []byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	privateKey = make([]byte, len(priv))
	copy(privateKey, priv[:])
	cryptoDomain.Zero(priv[:])
	return pub[:], privateKey, nil
}

// EnvelopeSealer encrypts each payload under a one-off data key and seals the
// data key anonymously to the document key's public key.
type EnvelopeSealer struct {
	aeadManager AEADManager
}

// NewEnvelopeSealer creates an EnvelopeSealer.
func NewEnvelopeSealer(aeadManager AEADManager) *EnvelopeSealer {
	return &EnvelopeSealer{aeadManager: aeadManager}
}

// Seal returns the marshaled envelope for payload.
func (s *EnvelopeSealer) Seal(
	payload []byte,
	alg cryptoDomain.Algorithm,
	keyVersion uint,
	publicKey []byte,
) ([]byte, error) {
	recipient, err := toKey(publicKey)
	if err != nil {
		return nil, err
	}

	dataKey := make([]byte, dataKeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}
	defer cryptoDomain.Zero(dataKey)

	cipher, err := s.aeadManager.CreateCipher(dataKey, alg)
	if err != nil {
		return nil, err
	}

	env := &cryptoDomain.Envelope{KeyVersion: keyVersion, Algorithm: alg}
	env.Ciphertext, env.Nonce, err = cipher.Encrypt(payload, env.Header())
	if err != nil {
		return nil, err
	}

	env.SealedKey, err = box.SealAnonymous(nil, dataKey, recipient, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to seal data key: %w", err)
	}

	return env.Marshal()
}

// Open verifies and decrypts a sealed envelope. An envelope sealed under any
// other key version is rejected before any decryption is attempted.
func (s *EnvelopeSealer) Open(sealed []byte, keyVersion uint, publicKey, privateKey []byte) ([]byte, error) {
	env, err := cryptoDomain.UnmarshalEnvelope(sealed)
	if err != nil {
		return nil, err
	}
	if env.KeyVersion != keyVersion {
		return nil, cryptoDomain.ErrKeyVersionMismatch
	}

	pub, err := toKey(publicKey)
	if err != nil {
		return nil, err
	}
	priv, err := toKey(privateKey)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(priv[:])

	dataKey, ok := box.OpenAnonymous(nil, env.SealedKey, pub, priv)
	if !ok {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	defer cryptoDomain.Zero(dataKey)

	cipher, err := s.aeadManager.CreateCipher(dataKey, env.Algorithm)
	if err != nil {
		return nil, err
	}
	return cipher.Decrypt(env.Ciphertext, env.Nonce, env.Header())
}

func toKey(b []byte) (*[32]byte, error) {
	if len(b) != 32 {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	var key [32]byte
	copy(key[:], b)
	return &key, nil
}
