package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorysh/panem/pkg/config"
	"github.com/factorysh/panem/pkg/crypto"
	"github.com/factorysh/panem/pkg/logger"
)

func TestPublic(t *testing.T) {
	for _, path := range []string{"/", "/healthz", "/swagger.json", "/swaggerui", "/swaggerui/index.html"} {
		assert.True(t, Public(path), path)
	}
	for _, path := range []string{"/projects/", "/metrics", "/swagger", "/index.html", ""} {
		assert.False(t, Public(path), path)
	}
}

func TestAuthenticatorVerify(t *testing.T) {
	hash, err := crypto.HashSecret("s3cret", 1000)
	require.NoError(t, err)
	auth := NewAuthenticator(config.Secret(hash), logger.Discard(), nil)

	assert.True(t, auth.Verify("s3cret"))
	assert.True(t, auth.Verify("s3cret"), "cached")
	assert.False(t, auth.Verify("S3cret"))
	assert.False(t, auth.Verify(""))
	assert.False(t, auth.Verify("$pbkdf2-sha256$garbage"))
}

func TestAuthenticatorBcryptHash(t *testing.T) {
	hash, err := crypto.HashPassword("s3cret")
	require.NoError(t, err)
	auth := NewAuthenticator(config.Secret(hash), logger.Discard(), nil)
	assert.True(t, auth.Verify("s3cret"))
	assert.False(t, auth.Verify("nope"))
}

func TestAuthenticatorMalformedConfiguredHash(t *testing.T) {
	auth := NewAuthenticator(config.Secret("plaintext"), logger.Discard(), nil)
	assert.False(t, auth.Verify("plaintext"))

	unset := NewAuthenticator("", logger.Discard(), nil)
	assert.False(t, unset.Verify("anything"))
}

func TestAuthenticatorWrapShortCircuits(t *testing.T) {
	hash, err := crypto.HashSecret("s3cret", 1000)
	require.NoError(t, err)
	called := false
	handler := NewAuthenticator(config.Secret(hash), logger.Discard(), nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.False(t, called)

	req := httptest.NewRequest(http.MethodGet, "/projects/", nil)
	req.Header.Set(APIKeyHeader, " s3cret ")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.True(t, called)
}
