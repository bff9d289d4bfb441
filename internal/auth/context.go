package auth

import (
	"context"
	"net/http"

	"github.com/classboard/classboard/internal/access"
)

type identityContextKey struct{}

// WithIdentity stores the authenticated identity in ctx.
func WithIdentity(ctx context.Context, ident access.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

// IdentityFromContext extracts the identity stored by the middleware.
func IdentityFromContext(ctx context.Context) (access.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey{}).(access.Identity)
	return ident, ok && !ident.Anonymous()
}

// CurrentIdentity returns the request identity, or the anonymous zero value.
func CurrentIdentity(r *http.Request) access.Identity {
	ident, _ := IdentityFromContext(r.Context())
	return ident
}
