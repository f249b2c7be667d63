package helpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	tok, exp, err := m.GenerateAccessToken("user-1", "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := m.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	tok, _, err := m.GenerateAccessToken("user-1", "user")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseAccessToken(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenWithoutExpiryIsRejected(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "u"}).SignedString(m.AccessSecret)
	require.NoError(t, err)

	_, err = m.ParseAccessToken(tok)
	assert.Error(t, err)
}

func TestOtherAlgorithmsAreRejected(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	claims := &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.AccessSecret)
	require.NoError(t, err)
	_, err = m.ParseAccessToken(hs512)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.ParseAccessToken(none)
	assert.Error(t, err)
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)
	hash, err := h.Hash("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, h.Compare(hash, "s3cret-pass"))
	assert.False(t, h.Compare(hash, "wrong"))

	assert.Equal(t, 10, NewPasswordHasher(99).Cost)
}
