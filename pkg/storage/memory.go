package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements an in-memory payload cache.
// It is safe for concurrent use by multiple goroutines.
//
// If a retention is configured, a background goroutine removes entries
// fetched longer ago than that. Retention should exceed the freshness TTL
// used with GetOrFetch, otherwise no stale copy survives an upstream outage.
// Multi-instance deployments should use RedisStore instead.
type MemoryStore struct {
	mu            sync.RWMutex
	entries       map[Key]Entry
	retention     time.Duration
	clock         Clock
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryStore creates a store that keeps entries until overwritten.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]Entry),
		clock:   time.Now,
	}
}

// NewMemoryStoreWithRetention creates a store that drops entries older than
// retention, checked every cleanupInterval (default one minute).
//
// The cleanup goroutine must be stopped by calling Stop() when the store
// is no longer needed.
func NewMemoryStoreWithRetention(retention, cleanupInterval time.Duration) *MemoryStore {
	if retention <= 0 {
		panic("retention must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		entries:       make(map[Key]Entry),
		retention:     retention,
		clock:         time.Now,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// WithClock replaces the clock used by cleanup and returns s for chaining.
func (s *MemoryStore) WithClock(c Clock) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
	return s
}

// Stop shuts down the cleanup goroutine and waits for it to exit.
// Calling Stop multiple times or on a store without retention is safe.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopped {
		return
	}

	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes entries older than the retention.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retention == 0 {
		return
	}

	now := s.clock()
	for key, e := range s.entries {
		if now.Sub(e.FetchedAt) > s.retention {
			delete(s.entries, key)
		}
	}
}

// Put stores e, replacing any entry with the same key.
func (s *MemoryStore) Put(ctx context.Context, e Entry) error {
	if err := e.Key.Validate(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	body := make([]byte, len(e.Body))
	copy(body, e.Body)
	e.Body = body

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.Key] = e
	return nil
}

// Get returns the entry for key, expired or not.
func (s *MemoryStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	select {
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, found := s.entries[key]
	return e, found, nil
}

// Len returns the number of entries currently stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Delete removes the entry for key and reports whether one existed.
func (s *MemoryStore) Delete(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.entries[key]
	delete(s.entries, key)
	return existed
}
