// Package store holds the shared client-side cache.
//
// The store is the one piece of mutable state shared across the sync layer.
// All reads and writes for a given resource key go through pkg/resource and
// pkg/optimistic rather than being mutated ad hoc, which keeps the
// snapshot/rollback invariant sound. The store itself only knows keys,
// values, fetch times and subscribers.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store is a keyed cache of server-owned values. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	subMu   sync.Mutex
	subs    map[string][]*subscription
	nextSub uint64

	now func() time.Time
}

type entry struct {
	value     any
	fetchedAt time.Time
}

type subscription struct {
	id uint64
	fn func()
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]*entry),
		subs:    make(map[string][]*subscription),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Get returns the raw cached value for key, its fetch time, and whether a
// value is present. Prefer the typed Value helper.
func (s *Store) Get(key string) (any, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return e.value, e.fetchedAt, true
}

// Set replaces the value for key and stamps it as freshly fetched.
// Subscribers are notified after the write.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.entries[key] = &entry{value: value, fetchedAt: s.now()}
	s.mu.Unlock()
	s.notify(key)
}

// Invalidate marks the value for key as stale while keeping it available for
// display. The next policy-governed read will refetch.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.fetchedAt = time.Time{}
	}
	s.mu.Unlock()
	s.notify(key)
}

// Drop removes the value for key entirely.
func (s *Store) Drop(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	s.notify(key)
}

// Subscribe registers fn to run after every write to key. fn runs on the
// writer's goroutine; it is meant for re-render triggers and must not write
// to the store itself. The returned cancel function removes the
// subscription; it is safe to call twice.
func (s *Store) Subscribe(key string, fn func()) (cancel func()) {
	s.subMu.Lock()
	s.nextSub++
	sub := &subscription{id: s.nextSub, fn: fn}
	s.subs[key] = append(s.subs[key], sub)
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		list := s.subs[key]
		for i, existing := range list {
			if existing.id == sub.id {
				list[i] = list[len(list)-1]
				s.subs[key] = list[:len(list)-1]
				return
			}
		}
	}
}

// notify runs subscribers outside any lock, copy-before-notify.
func (s *Store) notify(key string) {
	s.subMu.Lock()
	list := make([]*subscription, len(s.subs[key]))
	copy(list, s.subs[key])
	s.subMu.Unlock()

	for _, sub := range list {
		sub.fn()
	}
}

// Value returns the typed cached value for key. ok is false when the key is
// absent or holds a different type.
func Value[T any](s *Store, key string) (v T, fetchedAt time.Time, ok bool) {
	raw, at, present := s.Get(key)
	if !present {
		return v, time.Time{}, false
	}
	typed, isT := raw.(T)
	if !isT {
		return v, time.Time{}, false
	}
	return typed, at, true
}

// Clone deep-copies a value through a JSON round trip. Cache values are wire
// payloads, so the round trip is lossless for them.
func Clone[T any](v T) (T, error) {
	var out T
	encoded, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("store: clone encode: %w", err)
	}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return out, fmt.Errorf("store: clone decode: %w", err)
	}
	return out, nil
}

// Equal reports deep equality of two values by comparing their JSON forms.
// Used by tests and rollback verification.
func Equal[T any](a, b T) bool {
	ea, errA := json.Marshal(a)
	eb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}
