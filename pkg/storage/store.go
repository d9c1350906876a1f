// Package storage caches upstream history payloads.
//
// A Store keeps the last payload fetched per (dataset, zone). Freshness is
// not the store's concern: GetOrFetch decides, with an injected clock,
// whether a stored entry is still fresh, and keeps serving an expired entry
// when the upstream cannot be reached.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Key identifies one upstream payload.
type Key struct {
	Dataset string `json:"dataset"`
	Zone    string `json:"zone"`
}

func (k Key) String() string {
	return k.Dataset + "/" + k.Zone
}

// Validate accepts alphanumerics, hyphens and underscores in both parts.
func (k Key) Validate() error {
	if k.Dataset == "" || k.Zone == "" {
		return fmt.Errorf("cache key %q: dataset and zone are required", k)
	}
	for _, part := range []string{k.Dataset, k.Zone} {
		for _, c := range part {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
				(c >= '0' && c <= '9') || c == '-' || c == '_') {
				return fmt.Errorf("invalid cache key %q: only alphanumeric, hyphens, and underscores allowed", k)
			}
		}
	}
	return nil
}

// Entry is a cached payload and the time it was fetched.
type Entry struct {
	Key       Key       `json:"key"`
	Body      []byte    `json:"body"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Store is safe for concurrent use.
type Store interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, key Key) (Entry, bool, error)
}

// Clock returns the current time. Stores and GetOrFetch take one so tests
// can drive expiry.
type Clock func() time.Time
