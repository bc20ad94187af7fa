package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateLink returns a 32 character hex join token.
func GenerateLink() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
