package httpx

import (
	"crypto/sha256"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/factorysh/panem/pkg/config"
	"github.com/factorysh/panem/pkg/crypto"
)

// APIKeyHeader carries the inbound credential.
const APIKeyHeader = "X-API-KEY"

// publicPaths are reachable without a credential.
var publicPaths = map[string]struct{}{
	"/":             {},
	"/healthz":      {},
	"/swagger.json": {},
	"/swaggerui":    {},
}

const publicPrefix = "/swaggerui/"

type actorSetter interface {
	SetActor(string)
}

// Authenticator verifies X-API-KEY against the configured hash for every
// request outside the public paths.
type Authenticator struct {
	hash    config.Secret
	logger  *slog.Logger
	metrics *Metrics

	// verified holds digests of credentials that already passed the hash
	// check, so the key derivation runs once per distinct key.
	verified sync.Map
}

// NewAuthenticator returns a gate checking credentials against hash.
func NewAuthenticator(hash config.Secret, logger *slog.Logger, metrics *Metrics) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{hash: hash, logger: logger, metrics: metrics}
}

// Public reports whether path bypasses the credential check.
func Public(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}
	return strings.HasPrefix(path, publicPrefix)
}

// Verify reports whether credential matches the configured hash.
func (a *Authenticator) Verify(credential string) bool {
	if credential == "" || !a.hash.IsSet() {
		return false
	}
	digest := sha256.Sum256([]byte(credential))
	if _, ok := a.verified.Load(digest); ok {
		return true
	}
	if err := crypto.VerifySecret(a.hash.Value(), credential); err != nil {
		if errors.Is(err, crypto.ErrMalformedHash) {
			a.logger.Error("configured API key hash cannot be parsed", "error", err)
		}
		return false
	}
	a.verified.Store(digest, struct{}{})
	return true
}

// Wrap gates next. Rejected requests get 401 with an empty body.
func (a *Authenticator) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if Public(req.URL.Path) {
			next.ServeHTTP(w, req)
			return
		}
		credential := strings.TrimSpace(req.Header.Get(APIKeyHeader))
		if credential == "" {
			a.reject(w, req, "missing")
			return
		}
		if !a.Verify(credential) {
			a.reject(w, req, "invalid")
			return
		}
		if setter, ok := w.(actorSetter); ok {
			setter.SetActor("api_key")
		}
		next.ServeHTTP(w, req)
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, req *http.Request, reason string) {
	a.logger.Warn("api key rejected", "reason", reason, "path", req.URL.Path)
	a.metrics.recordAuthFailure(reason)
	w.WriteHeader(http.StatusUnauthorized)
}
