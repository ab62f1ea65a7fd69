package middleware

import (
	"context"

	"github.com/sabercon/portal-gateway/token"
)

// Context key type to avoid collisions
type contextKey string

const (
	// identityKey is the context key for the authenticated identity
	identityKey contextKey = "identity"

	// credentialKey is the context key for the raw credential that produced
	// the identity (needed by logout to revoke the exact token presented)
	credentialKey contextKey = "credential"
)

// WithIdentity attaches an authenticated identity to the context
func WithIdentity(ctx context.Context, identity *token.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the authenticated identity, or nil when the
// request is anonymous
func IdentityFromContext(ctx context.Context) *token.Identity {
	if val := ctx.Value(identityKey); val != nil {
		if identity, ok := val.(*token.Identity); ok {
			return identity
		}
	}
	return nil
}

// WithCredential attaches the raw credential to the context
func WithCredential(ctx context.Context, cred RawCredential) context.Context {
	return context.WithValue(ctx, credentialKey, cred)
}

// CredentialFromContext retrieves the raw credential for the current request
func CredentialFromContext(ctx context.Context) RawCredential {
	if val := ctx.Value(credentialKey); val != nil {
		if cred, ok := val.(RawCredential); ok {
			return cred
		}
	}
	return RawCredential{}
}
