// Package cache stores solved subproblems and finished layouts.
//
// Entries are opaque byte slices addressed by string keys. Keys are derived
// by a [Keyer] from content fingerprints, so identical problems map to the
// same entry regardless of where or when they were solved.
//
// Backends:
//   - [FileCache]: one JSON file per key in a directory (default)
//   - [RedisCache]: a shared redis instance
//   - [LRUCache]: an in-memory front for another backend
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store with per-entry expiry.
type Cache interface {
	// Get returns the entry for key. A missing or expired entry is reported
	// with hit == false and a nil error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Close releases resources held by the backend.
	Close() error
}

// Default entry lifetimes.
const (
	// TTLSolution applies to exact solver results. They depend only on
	// their fingerprint and never go stale.
	TTLSolution time.Duration = 0

	// TTLLayout applies to complete layouts served over HTTP.
	TTLLayout = 7 * 24 * time.Hour
)

// Keyer derives cache keys.
type Keyer interface {
	// SolutionKey returns the key of an exact solution.
	SolutionKey(fingerprint string) string

	// LayoutKey returns the key of a complete layout of the input with the
	// given content hash under the given options.
	LayoutKey(inputHash string, opts any) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SolutionKey returns "ilp:<fingerprint>".
func (DefaultKeyer) SolutionKey(fingerprint string) string {
	return "ilp:" + fingerprint
}

// LayoutKey hashes the input hash together with the options.
func (DefaultKeyer) LayoutKey(inputHash string, opts any) string {
	return hashKey("layout", inputHash, opts)
}
