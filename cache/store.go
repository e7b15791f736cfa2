package cache

import (
	"sync"
	"time"
)

// Stats describes the current state of a Store.
type Stats struct {
	// Entries is the number of live (non-expired) entries.
	Entries int

	// Evicted is the total number of entries removed due to expiry
	// over the lifetime of the store.
	Evicted uint64
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	now func() time.Time
}

// WithClock overrides the store's time source. Used by tests to
// exercise expiry deterministically.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

// Store is a thread-safe keyed store with optional per-entry expiry.
//
// Contract:
// - Concurrency: safe for concurrent use; per-key mutation is atomic.
// - Expiry: a zero deadline means the entry never expires. Reads of an
//   expired entry behave as misses and evict the entry.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     func() time.Time
	evicted uint64
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// NewStore creates an empty store.
func NewStore[V any](opts ...StoreOption) *Store[V] {
	cfg := storeConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store[V]{
		entries: make(map[string]entry[V]),
		now:     cfg.now,
	}
}

// Set stores a value. A zero deadline means the entry never expires.
// Storing an existing key fully replaces the prior value and deadline.
func (s *Store[V]) Set(key string, value V, deadline time.Time) {
	s.mu.Lock()
	s.entries[key] = entry[V]{value: value, deadline: deadline}
	s.mu.Unlock()
}

// Get retrieves a value. Returns (zero, false) on miss or expiry;
// an expired entry is evicted as a side effect.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if e.expired(s.now()) {
		s.evict(key)
		return zero, false
	}
	return e.value, true
}

// Take atomically retrieves and deletes a value. When two callers race
// for the same key, exactly one observes the value; the other misses.
// An expired entry is a miss and is evicted.
func (s *Store[V]) Take(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	e, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	delete(s.entries, key)
	if e.expired(s.now()) {
		s.evicted++
		return zero, false
	}
	return e.value, true
}

// Delete removes a value. Idempotent - no effect on miss.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes all entries unconditionally.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry[V])
	s.mu.Unlock()
}

// Len returns the number of stored entries, including any expired
// entries not yet evicted.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Range calls f for every live entry until f returns false. Expired
// entries encountered during the scan are evicted, not visited.
// f runs outside the store lock, so it may call back into the store.
func (s *Store[V]) Range(f func(key string, value V) bool) {
	now := s.now()

	s.mu.Lock()
	live := make(map[string]V, len(s.entries))
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			s.evicted++
			continue
		}
		live[k] = e.value
	}
	s.mu.Unlock()

	for k, v := range live {
		if !f(k, v) {
			return
		}
	}
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *Store[V]) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			s.evicted++
			removed++
		}
	}
	return removed
}

// Stats sweeps expired entries as a side effect and reports the
// resulting live size and lifetime eviction count.
func (s *Store[V]) Stats() Stats {
	s.Sweep()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Entries: len(s.entries),
		Evicted: s.evicted,
	}
}

func (s *Store[V]) evict(key string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock; a concurrent Set may have
	// replaced the entry with a live one.
	if e, ok := s.entries[key]; ok && e.expired(now) {
		delete(s.entries, key)
		s.evicted++
	}
}
