// Package cache provides a persistent, namespaced key/value cache with
// TTL-based lazy expiry, plus the request-coalescing cache-aside helper
// used by every data domain in the app.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a cache entry is absent or expired.
var ErrNotFound = errors.New("cache entry not found or expired")

// Entry is the envelope persisted for every cache key. Data is opaque to
// the store; the TTL is chosen by the caller at write time.
type Entry struct {
	Data     json.RawMessage `json:"data"`
	StoredAt time.Time       `json:"timestamp"`
	TTL      time.Duration   `json:"ttl"`
}

// Valid reports whether the entry is still within its TTL at the given
// instant. An entry exactly at its TTL boundary is expired.
func (e Entry) Valid(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Age returns how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Stats describes the persisted contents of one namespace.
type Stats struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

// Store is the persistence contract shared by all cache backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the payload for key if a valid entry exists. An entry
	// past its TTL is deleted on read and reported as ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetStale returns the stored envelope regardless of its age. Used by
	// the fallback path when a fresh fetch fails.
	GetStale(ctx context.Context, key string) (Entry, error)

	// Set overwrites the entry for key with the given payload and TTL.
	// Failures come back as *WriteError so callers can log and move on;
	// a failed write is a future miss, never a correctness problem.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes the entry for key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Clear deletes every entry under the namespace and returns how many
	// were removed.
	Clear(ctx context.Context, ns Keyspace) (int, error)

	// Stats reports the keys currently persisted under the namespace.
	// Diagnostics only; never used in a correctness path.
	Stats(ctx context.Context, ns Keyspace) (Stats, error)

	// Close releases backend resources. Safe to call once.
	Close() error
}

// WriteError wraps a storage-layer write failure.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("cache write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Keyspace names a cache namespace. Full keys are "<namespace>:<id>".
type Keyspace string

// Key builds a full cache key from the namespace and id parts.
func (k Keyspace) Key(parts ...string) string {
	key := string(k)
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Prefix returns the string prefix shared by every key in the namespace.
func (k Keyspace) Prefix() string { return string(k) + ":" }
