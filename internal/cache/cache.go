// Package cache is the process-wide time-to-live store shared by every
// orchestrated request. Concurrent misses on one key are coalesced into a
// single computation.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is one cached value. A read past storedAt+ttl is a miss.
type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) live(now time.Time) bool {
	return now.Before(e.storedAt.Add(e.ttl))
}

// Store is a keyed TTL cache. The zero value is not usable; call New.
type Store struct {
	maxItems       int
	computeTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger

	mu    sync.RWMutex
	items map[string]entry

	// coalesce concurrent misses per key
	sf singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithMaxItems bounds the number of entries. Zero means unbounded.
func WithMaxItems(n int) Option {
	return func(s *Store) {
		s.maxItems = n
	}
}

// WithComputeTimeout bounds a shared computation once it is detached from
// its callers. Defaults to DefaultComputeTimeout.
func WithComputeTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.computeTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// DefaultComputeTimeout bounds a shared computation.
const DefaultComputeTimeout = 2 * time.Minute

func New(opts ...Option) *Store {
	s := &Store{
		computeTimeout: DefaultComputeTimeout,
		now:            time.Now,
		logger:         slog.Default(),
		items:          make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the live value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || !e.live(s.now()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with a fresh timestamp. A non-positive ttl
// stores nothing.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := s.now()
	s.mu.Lock()
	s.items[key] = entry{value: value, storedAt: now, ttl: ttl}
	s.evictLocked(now)
	s.mu.Unlock()
}

// Delete drops key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// evictLocked removes expired entries first, then the oldest ones, until
// the store is within maxItems.
func (s *Store) evictLocked(now time.Time) {
	if s.maxItems <= 0 || len(s.items) <= s.maxItems {
		return
	}
	for k, e := range s.items {
		if !e.live(now) {
			delete(s.items, k)
		}
	}
	if len(s.items) <= s.maxItems {
		return
	}

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.items[keys[i]].storedAt.Before(s.items[keys[j]].storedAt)
	})
	for _, k := range keys[:len(keys)-s.maxItems] {
		delete(s.items, k)
	}
	s.logger.Debug("cache evicted entries", "remaining", len(s.items))
}

// GetOrCompute returns the live value under key, or runs fn, stores its
// result for ttl and returns it. Empty results are stored like any other;
// errors are returned and never stored. Concurrent callers on one key share
// a single fn call. That call keeps the first caller's values but not its
// cancellation, so one caller leaving does not fail the others; each caller
// still returns as soon as its own ctx is done.
func GetOrCompute[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := s.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	ch := s.sf.DoChan(key, func() (any, error) {
		// A flight that finished just before this one may have filled the key.
		if v, ok := s.Get(key); ok {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.computeTimeout)
		defer cancel()
		v, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		s.Set(key, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		t, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache: key %q holds %T", key, res.Val)
		}
		if res.Shared {
			s.logger.Debug("cache computation shared", "key", key)
		}
		return t, nil
	}
}
