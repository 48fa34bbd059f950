package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateSessionToken returns an opaque token made of a random UUID without
// dashes followed by 16 more random bytes in hex, 64 hex characters total.
func GenerateSessionToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "") + hex.EncodeToString(b), nil
}
