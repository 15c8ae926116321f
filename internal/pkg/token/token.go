package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewRefreshToken generates a cryptographically random 64-character hex token.
func NewRefreshToken() (string, error) {
	return randomHex(32, "refresh token")
}

// NewContinuationToken generates the opaque token that links sequential steps
// of a multi-step flow (recovery context, login challenge) to one caller.
func NewContinuationToken() (string, error) {
	return randomHex(32, "continuation token")
}

// NewVerificationToken generates the single-use email verification token.
// A v4 UUID is unguessable and safe to embed in a link.
func NewVerificationToken() string {
	return uuid.NewString()
}

func randomHex(n int, kind string) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}
	return hex.EncodeToString(b), nil
}
