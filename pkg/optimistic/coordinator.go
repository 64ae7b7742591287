package optimistic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/minishop-go/minishop/pkg/store"
)

// Observer receives mutation outcomes, for metrics.
type Observer interface {
	// MutationSettled is called once per mutation with its final outcome.
	MutationSettled(key string, ok bool)
	// RolledBack is called when a failed mutation restored its snapshot.
	RolledBack(key string)
}

// Coordinator serializes optimistic mutations per cache key.
//
// Store writes happen outside the coordinator's lock, so a store subscriber
// may call back into the coordinator (Pending, Run on another key). A
// subscriber must not mutate the key it observes.
type Coordinator struct {
	store *store.Store
	log   *slog.Logger
	obs   Observer

	mu     sync.Mutex
	queues map[string]*queue
}

type queue struct {
	tasks   []*task
	running bool

	// latest mirrors what the store holds, or will hold once the pending
	// write lands, for this key while the queue is registered. Snapshots
	// are taken from it so they never race the deferred store write.
	latest    any
	hasLatest bool
	version   uint64

	// writeMu orders the store writes that happen outside c.mu.
	writeMu sync.Mutex
}

// task is a type-erased mutation. The closures capture the concrete types.
type task struct {
	ctx         context.Context
	transform   func(any) any
	call        func(context.Context) (any, error)
	reconcile   func(local, server any) any
	clone       func(any) (any, error)
	invalidates []string

	// snapshot is the deep copy of the cache value taken immediately before
	// this task's transform was applied. Refreshed when an earlier task's
	// settle replays this task's transform.
	snapshot any
	hadValue bool

	done chan struct{}
	val  any
	err  error
}

// Config configures a Coordinator.
type Config struct {
	Store    *store.Store
	Logger   *slog.Logger
	Observer Observer
}

// NewCoordinator creates a Coordinator over the shared store.
func NewCoordinator(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		store:  cfg.Store,
		log:    log,
		obs:    cfg.Observer,
		queues: make(map[string]*queue),
	}
}

// Mutation describes one optimistic write.
//
// T is the cached resource type, R the server response type. When Reconcile
// is nil and R is assignable to T, the server payload replaces the cached
// value wholesale; supply Reconcile when the server returns a partial object
// (a single category out of a whole catalog) or when temporary client ids
// must be swapped for server-assigned ones.
type Mutation[T, R any] struct {
	// Key is the cache key the mutation speculates on.
	Key string

	// Transform produces the speculative value from the current cached one.
	// It receives the zero T when nothing is cached yet. It must not retain
	// its argument.
	Transform func(T) T

	// Call performs the server write and returns the authoritative payload.
	Call func(context.Context) (R, error)

	// Reconcile merges the server payload into the local value. Optional.
	Reconcile func(local T, server R) T

	// Invalidates lists dependent cache keys to invalidate on success.
	Invalidates []string
}

// Run enqueues the mutation, applies its speculative transform immediately,
// and blocks until the server call settles. It returns the server payload,
// or the propagated failure after the cache has been rolled back.
func Run[T, R any](ctx context.Context, c *Coordinator, m Mutation[T, R]) (R, error) {
	t := &task{
		ctx: ctx,
		transform: func(v any) any {
			return m.Transform(valueAs[T](v))
		},
		call: func(ctx context.Context) (any, error) {
			return m.Call(ctx)
		},
		reconcile: func(local, server any) any {
			if m.Reconcile != nil {
				return m.Reconcile(valueAs[T](local), server.(R))
			}
			if replacement, ok := server.(T); ok {
				return replacement
			}
			return local
		},
		clone: func(v any) (any, error) {
			return store.Clone(valueAs[T](v))
		},
		invalidates: m.Invalidates,
		done:        make(chan struct{}),
	}

	if err := c.enqueue(m.Key, t); err != nil {
		var zero R
		return zero, err
	}

	<-t.done
	if t.err != nil {
		var zero R
		return zero, t.err
	}
	return t.val.(R), nil
}

// enqueue snapshots the current value, applies the speculative transform and
// appends the task to the key's queue, starting a worker if none runs.
func (c *Coordinator) enqueue(key string, t *task) error {
	c.mu.Lock()

	q := c.queues[key]
	fresh := q == nil
	if fresh {
		q = &queue{}
	}

	// An already-registered queue owns the key's cache value; the store may
	// lag behind it by one pending write.
	var current any
	var had bool
	if fresh {
		current, _, had = c.store.Get(key)
	} else {
		current, had = q.latest, q.hasLatest
	}

	snapshot, err := t.clone(current)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("optimistic: snapshot %q: %w", key, err)
	}
	t.snapshot = snapshot
	t.hadValue = had

	// Transforms get their own copy; readers may still hold the stored value.
	work, err := t.clone(current)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("optimistic: snapshot %q: %w", key, err)
	}
	next := t.transform(work)

	if fresh {
		c.queues[key] = q
	}
	q.latest, q.hasLatest = next, true
	q.version++
	version := q.version
	q.tasks = append(q.tasks, t)
	if !q.running {
		q.running = true
		go c.work(key)
	}
	c.mu.Unlock()

	c.write(key, q, version, next, true)
	return nil
}

// write applies a computed cache value without holding c.mu, so store
// subscribers run lock-free with respect to the coordinator. writeMu orders
// writes from different goroutines; the version check drops a write that a
// newer computation superseded while c.mu was released.
func (c *Coordinator) write(key string, q *queue, version uint64, value any, has bool) {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	c.mu.Lock()
	stale := q.version != version
	c.mu.Unlock()
	if stale {
		return
	}
	if has {
		c.store.Set(key, value)
	} else {
		c.store.Drop(key)
	}
}

// work drains the key's queue one task at a time, in initiation order.
func (c *Coordinator) work(key string) {
	for {
		c.mu.Lock()
		q := c.queues[key]
		if q == nil || len(q.tasks) == 0 {
			if q != nil {
				q.running = false
			}
			delete(c.queues, key)
			c.mu.Unlock()
			return
		}
		t := q.tasks[0]
		c.mu.Unlock()

		server, err := t.call(t.ctx)

		c.mu.Lock()
		value, has, version, deps := c.settle(key, q, t, server, err)
		c.mu.Unlock()

		c.write(key, q, version, value, has)
		for _, dep := range deps {
			c.store.Invalidate(dep)
		}

		t.val, t.err = server, err
		close(t.done)

		if c.obs != nil {
			c.obs.MutationSettled(key, err == nil)
		}
	}
}

// settle removes the head task and computes the settled cache value: either
// the reconciled server truth or the task's snapshot, with the speculative
// transforms of the remaining queued tasks replayed on top under refreshed
// snapshots. The caller applies the returned value through write after
// releasing c.mu. Called with c.mu held.
func (c *Coordinator) settle(key string, q *queue, t *task, server any, callErr error) (value any, has bool, version uint64, deps []string) {
	q.tasks = q.tasks[1:]

	var base any
	hadBase := true
	if callErr != nil {
		base = t.snapshot
		hadBase = t.hadValue
		if c.obs != nil {
			c.obs.RolledBack(key)
		}
		c.log.Warn("mutation rolled back", "key", key, "error", callErr)
	} else {
		// local state as of this task's speculation, without later ones
		local := t.snapshotOfNext(q)
		if local == nil {
			if cloned, err := t.clone(q.latest); err == nil {
				local = cloned
			} else {
				local = q.latest
			}
		}
		base = t.reconcile(local, server)
	}

	for _, later := range q.tasks {
		snapshot, err := later.clone(base)
		if err == nil {
			later.snapshot = snapshot
			later.hadValue = hadBase
		}
		base = later.transform(base)
		hadBase = true
	}

	q.latest, q.hasLatest = base, hadBase
	q.version++

	if callErr == nil {
		for _, dep := range t.invalidates {
			if dep != key {
				deps = append(deps, dep)
			}
		}
	}
	return base, hadBase, q.version, deps
}

// snapshotOfNext returns the next queued task's snapshot, which equals the
// cache value right after this task's transform and before any later ones.
func (t *task) snapshotOfNext(q *queue) any {
	if len(q.tasks) > 0 {
		return q.tasks[0].snapshot
	}
	return nil
}

// Pending reports how many mutations are queued or in flight for key.
func (c *Coordinator) Pending(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q := c.queues[key]; q != nil {
		return len(q.tasks)
	}
	return 0
}

// valueAs converts a type-erased cache value to T, mapping absent (nil) to
// the zero T.
func valueAs[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	if typed, ok := v.(T); ok {
		return typed
	}
	var zero T
	return zero
}
