package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestSign_RoundTrip(t *testing.T) {
	key := testKey(t)

	token, err := GenerateSign(NewClaims("user-1", "alice", time.Hour), key)
	require.NoError(t, err)

	claims, err := ParseAndVerifySign(token, &key.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestSign_Expired(t *testing.T) {
	key := testKey(t)

	token, err := GenerateSign(NewClaims("user-1", "alice", -time.Minute), key)
	require.NoError(t, err)

	_, err = ParseAndVerifySign(token, &key.PublicKey)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSign_WrongKey(t *testing.T) {
	token, err := GenerateSign(NewClaims("user-1", "alice", time.Hour), testKey(t))
	require.NoError(t, err)

	_, err = ParseAndVerifySign(token, &testKey(t).PublicKey)
	assert.Error(t, err)
}

func TestSign_RejectsHMAC(t *testing.T) {
	key := testKey(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, NewClaims("user-1", "", time.Hour)).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseAndVerifySign(token, &key.PublicKey)
	assert.Error(t, err)
}

func TestSign_NoPrivateKey(t *testing.T) {
	_, err := GenerateSign(NewClaims("user-1", "", time.Hour), nil)
	assert.Error(t, err)
}

func TestGenerateLink(t *testing.T) {
	a, err := GenerateLink()
	require.NoError(t, err)
	b, err := GenerateLink()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
