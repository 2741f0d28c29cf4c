package auth

import "errors"

// Sentinel errors for authentication operations.
var (
	// ErrNoCredentials indicates that no credential was found in any
	// of the configured sources.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrNotAuthenticated indicates that a credential was present but
	// did not resolve to a live identity.
	ErrNotAuthenticated = errors.New("not authenticated")
)
