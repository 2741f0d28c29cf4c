// Package auth provides identity resolution and the authentication
// and role gates of the request pipeline.
package auth

import (
	"context"
	"errors"
)

// Identity represents the authenticated caller attached to a request.
// It is reconstructed from the account store on every request and is
// never cached across requests.
type Identity struct {
	// ID is the account ID (the token subject).
	ID string `json:"id"`

	// Email is the account email address.
	Email string `json:"email"`

	// Role is the account role.
	Role string `json:"role"`

	// Status is the account status at verification time.
	Status string `json:"status"`
}

// HasRole checks if the identity has the given role.
func (i *Identity) HasRole(role string) bool {
	return i.Role == role
}

// HasAnyRole checks if the identity has any of the given roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.Role == role {
			return true
		}
	}
	return false
}

// Verifier turns a credential string into a live Identity. It fails
// when the credential is malformed, expired, or its subject is no
// longer active.
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (*Identity, error)
}

// Context key type for identity.
type identityContextKey struct{}

// ContextWithIdentity adds an identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}

// ErrIdentityNotFound is returned when no identity is in the context.
var ErrIdentityNotFound = errors.New("identity not found in context")

// IdentityFromContextOrError extracts the identity from the context or
// returns ErrIdentityNotFound.
func IdentityFromContextOrError(ctx context.Context) (*Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return identity, nil
}
