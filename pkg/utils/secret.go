package utils

import (
	"crypto/rand"
	"encoding/base64"
)

func GenerateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateSecretKey returns a 32 character SECRET_KEY, long enough for both
// JWT signing and AES-256 token sealing.
func GenerateSecretKey() (string, error) {
	return GenerateRandomKey(24)
}
