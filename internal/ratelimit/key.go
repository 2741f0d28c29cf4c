package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request, clientIP string) string

// Key derives the storage key for a client address and path. Hashing
// keeps keys filesystem-safe and uniformly distributed across shards.
func Key(clientAddress, path string) string {
	sum := sha256.Sum256([]byte(clientAddress + "|" + path))
	return hex.EncodeToString(sum[:])
}

// AddressPathKeyFunc is the default KeyFunc, scoping limits to each
// (client address, path) pair.
func AddressPathKeyFunc(r *http.Request, clientIP string) string {
	return Key(clientIP, r.URL.Path)
}
