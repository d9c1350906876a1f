package storage

import (
	"context"
	"fmt"
	"time"
)

// FetchFunc retrieves a fresh payload from the upstream.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Result is what GetOrFetch served.
type Result struct {
	Entry

	// Hit is true when the entry came from the store.
	Hit bool
	// Stale is true when an expired entry was served because fetch failed.
	Stale bool
	// FetchErr is the upstream failure that forced a stale result.
	FetchErr error
	// StoreErr is a failure to read or write the store. It never fails the call.
	StoreErr error
}

// Age is how old the served payload is at now.
func (r Result) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// GetOrFetch is a cache-aside read with stale fallback:
//
//   - an entry younger than ttl is served as is;
//   - otherwise fetch runs and its result is stored and served;
//   - if fetch fails and an expired entry exists, that entry is served with
//     Stale set;
//   - if fetch fails and nothing is stored, the fetch error is returned.
//
// Store failures degrade to a miss. There is no locking beyond the store's
// own, so concurrent misses may each call fetch.
func GetOrFetch(ctx context.Context, store Store, key Key, ttl time.Duration, clock Clock, fetch FetchFunc) (Result, error) {
	if clock == nil {
		clock = time.Now
	}
	if err := key.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	cached, found, err := store.Get(ctx, key)
	if err != nil {
		res.StoreErr = err
		found = false
	}
	if found && clock().Sub(cached.FetchedAt) < ttl {
		res.Entry, res.Hit = cached, true
		return res, nil
	}

	body, err := fetch(ctx)
	if err != nil {
		if found {
			res.Entry, res.Hit, res.Stale, res.FetchErr = cached, true, true, err
			return res, nil
		}
		return Result{}, fmt.Errorf("fetch %s: %w", key, err)
	}

	res.Entry = Entry{Key: key, Body: body, FetchedAt: clock()}
	if err := store.Put(ctx, res.Entry); err != nil {
		res.StoreErr = err
	}
	return res, nil
}
