// Package store provides timestamp persistence for the sliding log
// rate limiter.
package store

import "context"

// Store persists the ordered request timestamps for a key. Load of an
// unknown key returns an empty slice, not an error.
//
// Load and Save are separate operations: the limiter's prune-and-
// append cycle is a read-modify-write, so concurrent requests to the
// same key may both read before either writes, transiently exceeding
// the cap. This best-effort behavior is accepted; the Redis limiter
// in the parent package provides an atomic alternative.
type Store interface {
	// Load returns the stored timestamps (unix seconds) for the key.
	Load(ctx context.Context, key string) ([]int64, error)

	// Save replaces the stored timestamps for the key. Saving an
	// empty slice removes the key.
	Save(ctx context.Context, key string, timestamps []int64) error
}
