package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret"))
}

func TestTokens_roundTrip(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	tok, err := tk.Issue(42)
	require.NoError(t, err)

	id, err := tk.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokens_rejects(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	tok, err := tk.Issue(1)
	require.NoError(t, err)

	_, err = NewTokens("other", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	_, err = tk.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	later := NewTokens("secret", time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: issuer, Subject: "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tk.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "someone-else", Subject: "1"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tk.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)

	id, ok := UserID(WithUserID(context.Background(), 7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}
