package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
)

func TestGenerateKeyPair(t *testing.T) {
	pub1, priv1, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, pub1, 32)
	assert.Len(t, priv1, 32)

	pub2, priv2, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.NotEqual(t, pub1, pub2)
	assert.NotEqual(t, priv1, priv2)
}

func TestEnvelopeSealer_SealOpen(t *testing.T) {
	sealer := NewEnvelopeSealer(NewAEADManager())
	payload := []byte("%PDF-1.3 signed direction to pay")

	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run("Success_"+string(alg), func(t *testing.T) {
			sealed, err := sealer.Seal(payload, alg, 3, pub)
			require.NoError(t, err)
			assert.NotContains(t, string(sealed), "direction to pay")

			env, err := cryptoDomain.UnmarshalEnvelope(sealed)
			require.NoError(t, err)
			assert.Equal(t, uint(3), env.KeyVersion)
			assert.Equal(t, alg, env.Algorithm)

			opened, err := sealer.Open(sealed, 3, pub, priv)
			require.NoError(t, err)
			assert.Equal(t, payload, opened)
		})
	}

	sealed, err := sealer.Seal(payload, cryptoDomain.AESGCM, 3, pub)
	require.NoError(t, err)

	t.Run("Error_WrongKeyVersion", func(t *testing.T) {
		_, err := sealer.Open(sealed, 2, pub, priv)
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyVersionMismatch)
	})

	t.Run("Error_WrongPrivateKey", func(t *testing.T) {
		otherPub, otherPriv, err := GenerateKeyPair()
		require.NoError(t, err)
		_, err = sealer.Open(sealed, 3, otherPub, otherPriv)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("Error_TamperedCiphertext", func(t *testing.T) {
		tampered := append([]byte(nil), sealed...)
		tampered[len(tampered)-1] ^= 0x01
		_, err := sealer.Open(tampered, 3, pub, priv)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("Error_RelabeledKeyVersion", func(t *testing.T) {
		env, err := cryptoDomain.UnmarshalEnvelope(sealed)
		require.NoError(t, err)
		env.KeyVersion = 4
		relabeled, err := env.Marshal()
		require.NoError(t, err)

		_, err = sealer.Open(relabeled, 4, pub, priv)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("Error_NotAnEnvelope", func(t *testing.T) {
		_, err := sealer.Open([]byte("%PDF-1.3"), 3, pub, priv)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidEnvelope)
	})

	t.Run("Error_InvalidPublicKey", func(t *testing.T) {
		_, err := sealer.Seal(payload, cryptoDomain.AESGCM, 1, []byte("short"))
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})

	t.Run("Error_UnsupportedAlgorithm", func(t *testing.T) {
		_, err := sealer.Seal(payload, "rot13", 1, pub)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})
}
