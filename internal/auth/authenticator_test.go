package auth

import (
	"testing"
	"time"

	"github.com/goevery/presence/internal/ierr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestAuthenticator_AuthenticateToken(t *testing.T) {
	authenticator := NewAuthenticator("test-secret", []string{"test-api-key"})

	signToken := func(t *testing.T, claims jwt.MapClaims, secret string) string {
		t.Helper()

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		tokenString, err := token.SignedString([]byte(secret))
		assert.NoError(t, err)

		return tokenString
	}

	t.Run("valid token", func(t *testing.T) {
		tokenString := signToken(t, jwt.MapClaims{
			"sub": "test-user",
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
			"aud": "presence",
		}, "test-secret")

		authentication, err := authenticator.AuthenticateToken(tokenString)

		assert.NoError(t, err)
		assert.NotNil(t, authentication)
		assert.Equal(t, "test-user", authentication.Subject)
		assert.False(t, authentication.IsAPI)
	})

	t.Run("invalid signature", func(t *testing.T) {
		tokenString := signToken(t, jwt.MapClaims{
			"sub": "test-user",
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
			"aud": "presence",
		}, "invalid-secret")

		authentication, err := authenticator.AuthenticateToken(tokenString)

		assert.Error(t, err)
		assert.Nil(t, authentication)
		assert.IsType(t, ierr.Error{}, err)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("expired token", func(t *testing.T) {
		tokenString := signToken(t, jwt.MapClaims{
			"sub": "test-user",
			"exp": time.Now().Add(-time.Hour).Unix(),
			"iat": time.Now().Add(-2 * time.Hour).Unix(),
			"aud": "presence",
		}, "test-secret")

		authentication, err := authenticator.AuthenticateToken(tokenString)

		assert.Error(t, err)
		assert.Nil(t, authentication)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("wrong audience", func(t *testing.T) {
		tokenString := signToken(t, jwt.MapClaims{
			"sub": "test-user",
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
			"aud": "another-service",
		}, "test-secret")

		authentication, err := authenticator.AuthenticateToken(tokenString)

		assert.Error(t, err)
		assert.Nil(t, authentication)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("missing subject", func(t *testing.T) {
		tokenString := signToken(t, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
			"aud": "presence",
		}, "test-secret")

		authentication, err := authenticator.AuthenticateToken(tokenString)

		assert.Error(t, err)
		assert.Nil(t, authentication)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, err.(ierr.Error).Code)
	})
}

func TestAuthenticator_AuthenticateAPIKey(t *testing.T) {
	authenticator := NewAuthenticator("test-secret", []string{"test-api-key"})

	t.Run("valid api key", func(t *testing.T) {
		authentication, err := authenticator.AuthenticateAPIKey("test-api-key")

		assert.NoError(t, err)
		assert.NotNil(t, authentication)
		assert.Equal(t, "api", authentication.Subject)
		assert.True(t, authentication.IsAPI)
	})

	t.Run("invalid api key", func(t *testing.T) {
		authentication, err := authenticator.AuthenticateAPIKey("invalid-api-key")

		assert.Error(t, err)
		assert.Nil(t, authentication)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})
}
