package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	c := NewTokenCipher("0123456789abcdef0123456789abcdef")
	require.True(t, c.Enabled())

	sealed, err := c.Seal("EAAG-token")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "EAAG-token")

	again, err := c.Seal(sealed)
	require.NoError(t, err)
	assert.Equal(t, sealed, again, "sealing twice must not double encrypt")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "EAAG-token", plain)
}

func TestTokenCipherPassthrough(t *testing.T) {
	c := NewTokenCipher("short")
	assert.False(t, c.Enabled())

	sealed, err := c.Seal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	opened, err := c.Open("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", opened)

	_, err = c.Open("enc:abcd")
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("secret", "ops", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)

	_, err = ValidateToken("other-secret", token)
	assert.Error(t, err)

	expired, err := GenerateToken("secret", "ops", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("secret", expired)
	assert.Error(t, err)
}

func TestGenerateSecretKeyEnablesCipher(t *testing.T) {
	key, err := GenerateSecretKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
	assert.True(t, NewTokenCipher(key).Enabled())

	other, err := GenerateSecretKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}
