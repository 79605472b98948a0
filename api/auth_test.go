package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-for-collab"

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func TestJWTIdentityResolverValidToken(t *testing.T) {
	resolver := NewJWTIdentityResolver(testJWTSecret, "")

	token := signTestToken(t, jwt.MapClaims{
		"sub":   "user-123",
		"name":  "Alice Example",
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	identity, err := resolver.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.UserID)
	assert.Equal(t, "Alice Example", identity.Name)
	assert.Equal(t, "alice@example.com", identity.Email)
}

func TestJWTIdentityResolverNameFallback(t *testing.T) {
	resolver := NewJWTIdentityResolver(testJWTSecret, "HS256")

	t.Run("falls back to email", func(t *testing.T) {
		token := signTestToken(t, jwt.MapClaims{
			"sub":   "user-123",
			"email": "alice@example.com",
		})
		identity, err := resolver.Resolve(token)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", identity.Name)
	})

	t.Run("falls back to subject", func(t *testing.T) {
		token := signTestToken(t, jwt.MapClaims{"sub": "user-123"})
		identity, err := resolver.Resolve(token)
		require.NoError(t, err)
		assert.Equal(t, "user-123", identity.Name)
	})
}

func TestJWTIdentityResolverRejections(t *testing.T) {
	resolver := NewJWTIdentityResolver(testJWTSecret, "")

	t.Run("missing token", func(t *testing.T) {
		_, err := resolver.Resolve("")
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := resolver.Resolve("not.a.jwt")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-123"})
		signed, err := token.SignedString([]byte("some-other-secret"))
		require.NoError(t, err)
		_, err = resolver.Resolve(signed)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signTestToken(t, jwt.MapClaims{
			"sub": "user-123",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		_, err := resolver.Resolve(token)
		assert.Error(t, err)
	})

	t.Run("missing sub claim", func(t *testing.T) {
		token := signTestToken(t, jwt.MapClaims{"name": "Alice"})
		_, err := resolver.Resolve(token)
		assert.Error(t, err)
	})

	t.Run("wrong signing method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "user-123"})
		signed, err := token.SignedString([]byte(testJWTSecret))
		require.NoError(t, err)
		_, err = resolver.Resolve(signed)
		assert.Error(t, err)
	})
}
