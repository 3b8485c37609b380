// Package domain defines the key material and envelope types used to seal
// generated documents.
//
// Documents are encrypted with a fresh data key under an AEAD cipher. The data
// key is sealed to the X25519 public key of the active document key version,
// whose private half is only ever stored wrapped by a KMS keeper.
package domain

// Algorithm is the AEAD cipher that encrypts a document payload.
type Algorithm string

const (
	// AESGCM is AES-256 in Galois/Counter Mode.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// KeyAlgorithm names the asymmetric scheme of document keys.
const KeyAlgorithm = "x25519-nacl-box"

// ParseAlgorithm validates an algorithm name from configuration.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case AESGCM, ChaCha20:
		return Algorithm(name), nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
