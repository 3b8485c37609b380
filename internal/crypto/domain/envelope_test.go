package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_MarshalUnmarshal(t *testing.T) {
	env := &Envelope{
		KeyVersion: 7,
		Algorithm:  ChaCha20,
		SealedKey:  []byte("sealed-data-key"),
		Nonce:      []byte("123456789012"),
		Ciphertext: []byte("ciphertext-bytes"),
	}

	data, err := env.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "ESD1", string(data[:4]))

	decoded, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestEnvelope_Header(t *testing.T) {
	a := (&Envelope{KeyVersion: 1, Algorithm: AESGCM}).Header()
	b := (&Envelope{KeyVersion: 2, Algorithm: AESGCM}).Header()
	c := (&Envelope{KeyVersion: 1, Algorithm: ChaCha20}).Header()

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEnvelope_Marshal_Invalid(t *testing.T) {
	_, err := (&Envelope{KeyVersion: 1}).Marshal()
	assert.ErrorIs(t, err, ErrInvalidEnvelope)

	_, err = (&Envelope{KeyVersion: 1, Algorithm: AESGCM, Nonce: make([]byte, 256)}).Marshal()
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestUnmarshalEnvelope_Invalid(t *testing.T) {
	valid, err := (&Envelope{
		KeyVersion: 1,
		Algorithm:  AESGCM,
		SealedKey:  make([]byte, 48),
		Nonce:      make([]byte, 12),
		Ciphertext: []byte("x"),
	}).Marshal()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short", data: []byte("ESD1")},
		{name: "bad magic", data: append([]byte("XXXX"), valid[4:]...)},
		{name: "truncated sealed key", data: valid[:20]},
		{name: "truncated nonce", data: valid[:len(valid)-8]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEnvelope(tt.data)
			assert.ErrorIs(t, err, ErrInvalidEnvelope)
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("aes-gcm")
	require.NoError(t, err)
	assert.Equal(t, AESGCM, alg)

	alg, err = ParseAlgorithm("chacha20-poly1305")
	require.NoError(t, err)
	assert.Equal(t, ChaCha20, alg)

	_, err = ParseAlgorithm("rot13")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
