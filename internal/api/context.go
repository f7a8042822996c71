package api

import (
	"context"

	"github.com/serroba/line-docs/internal/auth"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext extracts the authenticated identity from the context.
// Returns auth.Anonymous if not present.
func IdentityFromContext(ctx context.Context) auth.Identity {
	if v := ctx.Value(identityKey); v != nil {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}

	return auth.Anonymous
}

// withIdentity returns a new context with the identity set.
func withIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
