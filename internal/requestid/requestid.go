// Package requestid carries the per-request correlation id through contexts.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying the id inbound and outbound.
const Header = "X-Request-ID"

type contextKey struct{}

// New returns a fresh random id.
func New() string {
	return uuid.NewString()
}

// FromHeader returns the trimmed inbound id, or a fresh one when absent.
func FromHeader(value string) string {
	if id := strings.TrimSpace(value); id != "" && len(id) <= 128 {
		return id
	}
	return New()
}

// WithID stores id in ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the id stored in ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}
