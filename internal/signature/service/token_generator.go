package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// tokenBytes is the entropy of a signature token. Encoded with unpadded base64url it
// yields 43 characters.
const tokenBytes = 32

type randomTokenGenerator struct{}

// NewTokenGenerator creates a generator of cryptographically random, URL-safe tokens.
// Tokens carry no case or document information.
func NewTokenGenerator() TokenGenerator {
	return &randomTokenGenerator{}
}

// Generate returns a new random token.
func (g *randomTokenGenerator) Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Validate checks that token has the shape of a generated token.
func (g *randomTokenGenerator) Validate(token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return errors.New("token must be unpadded base64url")
	}
	if len(decoded) != tokenBytes {
		return fmt.Errorf("token must encode %d bytes", tokenBytes)
	}
	return nil
}
