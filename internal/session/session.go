// Package session provides server-side session storage for auth
// tokens. The credential extractor consults it between the bearer
// header and the token cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when no session matches the ID.
var ErrNotFound = errors.New("session not found")

// Store is the interface for session persistence. Sessions map an
// opaque session ID (carried in a cookie) to the bearer token issued
// at login.
type Store interface {
	// Get returns the token stored under the session ID.
	Get(ctx context.Context, sessionID string) (string, error)

	// Put stores a token under the session ID with a TTL.
	Put(ctx context.Context, sessionID, token string, ttl time.Duration) error

	// Delete removes the session.
	Delete(ctx context.Context, sessionID string) error
}

// NewSessionID generates a cryptographically random session ID.
func NewSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
