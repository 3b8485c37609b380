package domain

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZero(t *testing.T) {
	t.Run("document private key", func(t *testing.T) {
		var privateKey [32]byte
		_, err := rand.Read(privateKey[:])
		require.NoError(t, err)

		Zero(privateKey[:])
		assert.Equal(t, [32]byte{}, privateKey)
	})

	t.Run("data key inside a larger buffer", func(t *testing.T) {
		buf := bytes.Repeat([]byte{0xAB}, 64)
		dataKey := buf[16:48]

		Zero(dataKey)
		assert.Equal(t, bytes.Repeat([]byte{0xAB}, 16), buf[:16])
		assert.Equal(t, make([]byte, 32), buf[16:48])
		assert.Equal(t, bytes.Repeat([]byte{0xAB}, 16), buf[48:])
	})

	t.Run("decrypted document", func(t *testing.T) {
		plaintext := []byte("%PDF-1.3 signed claims form")
		Zero(plaintext)
		assert.Equal(t, make([]byte, len("%PDF-1.3 signed claims form")), plaintext)
	})

	t.Run("nil key", func(t *testing.T) {
		var key []byte
		assert.NotPanics(t, func() { Zero(key) })
	})
}
