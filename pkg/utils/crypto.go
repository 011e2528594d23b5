package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
)

const sealedPrefix = "enc:"

func Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)
	finalData := append(nonce, ciphertext...)

	return base64.StdEncoding.EncodeToString(finalData), nil
}

// Decrypt decrypts the base64-encoded ciphertext using AES-GCM with the provided key.
func Decrypt(encryptedData string, key []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return string(plaintext), nil
}

// TokenCipher seals channel access tokens at rest. With a key that is not a
// valid AES length it passes values through unchanged.
type TokenCipher struct {
	key []byte
}

func NewTokenCipher(secret string) *TokenCipher {
	switch len(secret) {
	case 16, 24, 32:
		return &TokenCipher{key: []byte(secret)}
	default:
		return &TokenCipher{}
	}
}

func (c *TokenCipher) Enabled() bool {
	return c != nil && len(c.key) > 0
}

// Seal encrypts a plaintext token. Empty and already sealed values are returned as is.
func (c *TokenCipher) Seal(token string) (string, error) {
	if !c.Enabled() || token == "" || IsSealed(token) {
		return token, nil
	}
	enc, err := Encrypt([]byte(token), c.key)
	if err != nil {
		return "", err
	}
	return sealedPrefix + enc, nil
}

// Open returns the plaintext of a sealed token; plaintext input is returned unchanged.
func (c *TokenCipher) Open(token string) (string, error) {
	if !IsSealed(token) {
		return token, nil
	}
	if !c.Enabled() {
		return "", errors.New("token is encrypted but no SECRET_KEY is configured")
	}
	return Decrypt(strings.TrimPrefix(token, sealedPrefix), c.key)
}

func IsSealed(token string) bool {
	return strings.HasPrefix(token, sealedPrefix)
}
