// Package resource applies per-resource caching policy on top of the shared
// store.
//
// A Resource owns the decision of whether a cached value may be served as-is
// or must trigger a network refresh. Fetches go through the deduplicator, so
// any number of near-simultaneous readers produce at most one network call.
package resource

import (
	"context"
	"time"

	"github.com/minishop-go/minishop/pkg/dedup"
	"github.com/minishop-go/minishop/pkg/store"
)

// Observer receives cache outcomes, for metrics.
type Observer interface {
	// CacheHit is called when a read was satisfied from the cache.
	CacheHit(key string)
	// CacheMiss is called when a read triggered a fetch.
	CacheMiss(key string)
}

// Resource is a named, cached, server-owned value.
//
// The staleness rule: a value with a zero fetch time is always stale; with
// StaleAfter(0) (the default) every read refetches, which is the policy for
// catalog data so fresh admin edits appear on every navigation. A non-zero
// StaleAfter serves the cached value without a network call until it ages
// out.
type Resource[T any] struct {
	key   string
	store *store.Store
	dedup *dedup.Deduplicator
	fetch func(context.Context) (T, error)

	staleAfter     time.Duration
	refreshOnFocus bool
	obs            Observer
	now            func() time.Time
}

// New creates a Resource backed by the given store and deduplicator.
func New[T any](s *store.Store, d *dedup.Deduplicator, key string, fetch func(context.Context) (T, error)) *Resource[T] {
	return &Resource[T]{
		key:   key,
		store: s,
		dedup: d,
		fetch: fetch,
		now:   time.Now,
	}
}

// StaleAfter sets how long a fetched value stays fresh. Zero means every
// read refetches.
func (r *Resource[T]) StaleAfter(d time.Duration) *Resource[T] {
	r.staleAfter = d
	return r
}

// RefreshOnFocus opts the resource into refreshing when the app regains
// focus.
func (r *Resource[T]) RefreshOnFocus() *Resource[T] {
	r.refreshOnFocus = true
	return r
}

// Observe attaches a metrics observer.
func (r *Resource[T]) Observe(obs Observer) *Resource[T] {
	r.obs = obs
	return r
}

// Clock overrides the time source. Used by tests.
func (r *Resource[T]) Clock(now func() time.Time) *Resource[T] {
	r.now = now
	return r
}

// Key returns the resource's cache key.
func (r *Resource[T]) Key() string { return r.key }

// Get returns the cached value when fresh, otherwise fetches. A fetch that
// is already in flight for this resource is joined, not repeated.
func (r *Resource[T]) Get(ctx context.Context) (T, error) {
	if v, fetchedAt, ok := store.Value[T](r.store, r.key); ok && r.fresh(fetchedAt) {
		if r.obs != nil {
			r.obs.CacheHit(r.key)
		}
		return v, nil
	}
	if r.obs != nil {
		r.obs.CacheMiss(r.key)
	}
	return r.Refetch(ctx)
}

// Peek returns the cached value without any freshness check or network
// activity.
func (r *Resource[T]) Peek() (T, bool) {
	v, _, ok := store.Value[T](r.store, r.key)
	return v, ok
}

// Refetch always performs a fetch (deduplicated) and stores the result.
func (r *Resource[T]) Refetch(ctx context.Context) (T, error) {
	return dedup.Do(r.dedup, "fetch:"+r.key, func() (T, error) {
		v, err := r.fetch(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		r.store.Set(r.key, v)
		return v, nil
	})
}

// Invalidate marks the cached value stale so the next Get refetches.
func (r *Resource[T]) Invalidate() {
	r.store.Invalidate(r.key)
}

// HandleFocus refreshes the resource if it opted in and its value has gone
// stale. Called by the host bridge when the mini-app regains focus.
func (r *Resource[T]) HandleFocus(ctx context.Context) error {
	if !r.refreshOnFocus {
		return nil
	}
	if _, fetchedAt, ok := store.Value[T](r.store, r.key); ok && r.fresh(fetchedAt) {
		return nil
	}
	_, err := r.Refetch(ctx)
	return err
}

// Subscribe registers fn to run after every write to the resource's cache
// entry.
func (r *Resource[T]) Subscribe(fn func()) (cancel func()) {
	return r.store.Subscribe(r.key, fn)
}

func (r *Resource[T]) fresh(fetchedAt time.Time) bool {
	if fetchedAt.IsZero() || r.staleAfter <= 0 {
		return false
	}
	return r.now().Sub(fetchedAt) < r.staleAfter
}
