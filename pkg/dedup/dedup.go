// Package dedup collapses concurrent identical operations into one in-flight
// call. All callers sharing a key observe the exact same outcome.
//
// An in-flight entry older than the TTL no longer absorbs new callers: a
// fresh call for the same key starts a new operation. This prevents a
// permanently stuck entry from starving future requests.
package dedup

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long an in-flight entry absorbs new callers.
const DefaultTTL = 5 * time.Second

// Observer receives dedup outcomes, for metrics.
type Observer interface {
	// DedupHit is called when a caller joined an existing in-flight operation.
	DedupHit(key string)
	// DedupMiss is called when a caller started a new operation.
	DedupMiss(key string)
}

// Deduplicator tracks in-flight operations by key.
// The zero value is not usable; create one with New.
type Deduplicator struct {
	mu      sync.Mutex
	pending map[string]*call
	ttl     time.Duration
	now     func() time.Time
	obs     Observer
}

type call struct {
	done      chan struct{}
	startedAt time.Time
	val       any
	err       error
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithTTL overrides the entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(d *Deduplicator) { d.ttl = ttl }
}

// WithObserver attaches a metrics observer.
func WithObserver(obs Observer) Option {
	return func(d *Deduplicator) { d.obs = obs }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(d *Deduplicator) { d.now = now }
}

// New creates a Deduplicator.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		pending: make(map[string]*call),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Do invokes op, or joins an in-flight invocation for the same key that is
// younger than the TTL. op is never invoked more than once concurrently for
// the same key within the TTL window. The entry is removed when op settles.
//
// A panic inside op is converted into an error delivered to every waiter,
// then re-raised in the invoking goroutine.
func Do[T any](d *Deduplicator, key string, op func() (T, error)) (T, error) {
	v, err := d.do(key, func() (any, error) { return op() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Forget drops the in-flight entry for key, if any. Waiters already joined
// still observe the original outcome.
func (d *Deduplicator) Forget(key string) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}

// InFlight reports whether an operation for key is currently registered.
func (d *Deduplicator) InFlight(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

func (d *Deduplicator) do(key string, op func() (any, error)) (any, error) {
	d.mu.Lock()
	if c, ok := d.pending[key]; ok && d.now().Sub(c.startedAt) < d.ttl {
		d.mu.Unlock()
		if d.obs != nil {
			d.obs.DedupHit(key)
		}
		<-c.done
		return c.val, c.err
	}

	c := &call{done: make(chan struct{}), startedAt: d.now()}
	d.pending[key] = c
	d.mu.Unlock()
	if d.obs != nil {
		d.obs.DedupMiss(key)
	}

	panicked := true
	defer func() {
		if panicked {
			c.err = fmt.Errorf("dedup: operation for %q panicked", key)
			d.settle(key, c)
			// Re-raise in the invoking goroutine only.
		}
	}()

	c.val, c.err = op()
	panicked = false
	d.settle(key, c)
	return c.val, c.err
}

// settle publishes the outcome and clears the registration, unless the entry
// was already replaced after outliving its TTL.
func (d *Deduplicator) settle(key string, c *call) {
	close(c.done)
	d.mu.Lock()
	if d.pending[key] == c {
		delete(d.pending, key)
	}
	d.mu.Unlock()
}
