// Package cache provides a small in-process TTL cache with a bounded
// entry count. It backs the per-learner review session context and is
// injected rather than held in a package-level global, so tests can
// supply their own instance and clock.
package cache

import (
	"sync"
	"time"
)

// Store is the read/write surface consumers depend on.
type Store[K comparable, V any] interface {
	// Get returns the live value for key, if any. Expired entries are
	// treated as absent even before a sweep removes them.
	Get(key K) (V, bool)

	// Set stores the value under key, resetting its TTL. When the store
	// is at capacity, the entry closest to expiry is evicted first.
	Set(key K, value V)

	// Delete removes the entry for key, if present.
	Delete(key K)

	// Len reports the number of entries currently held, expired
	// entries included until the next sweep.
	Len() int

	// Sweep removes all expired entries and reports how many were
	// dropped. Intended to be driven by a periodic scheduler.
	Sweep() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLStore is a mutex-guarded map-backed Store implementation.
type TTLStore[K comparable, V any] struct {
	mu         sync.Mutex
	entries    map[K]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// Option configures a TTLStore.
type Option[K comparable, V any] func(*TTLStore[K, V])

// WithClock overrides the time source. Tests use this to control
// expiry deterministically.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(s *TTLStore[K, V]) {
		s.now = now
	}
}

// NewTTLStore creates a store whose entries live for ttl and whose
// size never exceeds maxEntries. Panics on non-positive arguments:
// both come from validated config.
func NewTTLStore[K comparable, V any](ttl time.Duration, maxEntries int, opts ...Option[K, V]) *TTLStore[K, V] {
	if ttl <= 0 {
		panic("cache ttl must be positive")
	}
	if maxEntries <= 0 {
		panic("cache maxEntries must be positive")
	}

	s := &TTLStore[K, V]{
		entries:    make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store[string, int] = (*TTLStore[string, int])(nil)

// Get implements Store.Get
func (s *TTLStore[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set implements Store.Set
func (s *TTLStore[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictLocked(now)
	}

	s.entries[key] = entry[V]{value: value, expiresAt: now.Add(s.ttl)}
}

// evictLocked makes room for one new entry: expired entries go first,
// then the entry closest to expiry.
func (s *TTLStore[K, V]) evictLocked(now time.Time) {
	if s.sweepLocked(now) > 0 {
		return
	}

	var victim K
	var earliest time.Time
	first := true
	for k, e := range s.entries {
		if first || e.expiresAt.Before(earliest) {
			victim = k
			earliest = e.expiresAt
			first = false
		}
	}
	if !first {
		delete(s.entries, victim)
	}
}

// Delete implements Store.Delete
func (s *TTLStore[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len implements Store.Len
func (s *TTLStore[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep implements Store.Sweep
func (s *TTLStore[K, V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *TTLStore[K, V]) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
