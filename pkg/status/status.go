// Package status keeps the global store open/closed flag fresh on every
// client.
//
// The channel maintains one live push stream to the backend and, independent
// of stream health, polls the status endpoint on a fixed interval. The poll
// covers the known WebView failure mode where a persistent connection is
// killed without any error reaching the client. Stream errors trigger a
// reconnect after a fixed short delay; no exponential backoff, because the
// dominant failure is a background/foreground transition, not sustained
// server unavailability.
package status

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minishop-go/minishop/pkg/api"
	"github.com/minishop-go/minishop/pkg/store"
)

// Key is the cache key owned by the status channel. Other components only
// read it.
const Key = "store-status"

// Defaults.
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultReconnectDelay = 3 * time.Second
)

// State is the push stream's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Fetcher fetches the current status once. Implemented by api.Client.
type Fetcher interface {
	StoreStatus(ctx context.Context) (api.StoreStatus, error)
}

// StreamTransport opens a push stream. SSE is the default; a WebSocket
// implementation exists for hosts whose WebView cannot hold an SSE stream.
type StreamTransport interface {
	Connect(ctx context.Context) (StreamConn, error)
}

// StreamConn is one live push connection.
type StreamConn interface {
	// Next blocks until the server emits the next status document.
	Next() (api.StoreStatus, error)
	// Close tears the connection down; a blocked Next returns an error.
	Close() error
}

// Observer receives channel events, for metrics.
type Observer interface {
	// StreamConnected is called when the push stream (re)establishes.
	StreamConnected()
	// ReconnectScheduled is called when a stream error schedules a reconnect.
	ReconnectScheduled()
	// PollRefreshed is called when a fallback poll refreshed the status.
	PollRefreshed()
}

// Config configures a Channel.
type Config struct {
	Store   *store.Store
	Fetcher Fetcher
	Stream  StreamTransport

	// PollInterval is the fallback poll period. Default: 30 s.
	PollInterval time.Duration

	// ReconnectDelay is the fixed wait before reopening a failed stream.
	// Default: 3 s.
	ReconnectDelay time.Duration

	Logger   *slog.Logger
	Observer Observer
}

// Channel owns the StoreStatus cache entry and keeps it fresh.
type Channel struct {
	store   *store.Store
	fetcher Fetcher
	stream  StreamTransport
	poll    time.Duration
	delay   time.Duration
	log     *slog.Logger
	obs     Observer

	state   atomic.Int32
	loading atomic.Bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Channel. It does nothing until Start.
func New(cfg Config) *Channel {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	c := &Channel{
		store:   cfg.Store,
		fetcher: cfg.Fetcher,
		stream:  cfg.Stream,
		poll:    poll,
		delay:   delay,
		log:     log,
		obs:     cfg.Observer,
	}
	c.loading.Store(true)
	return c
}

// Start issues one baseline poll, then runs the push stream and the fallback
// poll until Stop or ctx cancellation. Calling Start twice is a no-op.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	// Baseline value before the stream is up, so subscribers never stare at
	// a blank state longer than one round trip.
	c.pollOnce(ctx)

	c.wg.Add(2)
	go c.streamLoop(ctx)
	go c.pollLoop(ctx)
}

// Stop closes the stream and cancels both timers. No goroutine, timer or
// socket outlives it.
func (c *Channel) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.setState(Disconnected)
}

// Refresh forces one immediate poll fetch. Callers use it after a mutation
// that could affect status, for faster-than-poll confirmation.
func (c *Channel) Refresh(ctx context.Context) error {
	if _, _, ok := c.store.Get(Key); !ok {
		c.loading.Store(true)
	}
	st, err := c.fetcher.StoreStatus(ctx)
	if err != nil {
		return err
	}
	c.publish(st)
	return nil
}

// Current returns the cached status.
func (c *Channel) Current() (api.StoreStatus, bool) {
	v, _, ok := store.Value[api.StoreStatus](c.store, Key)
	return v, ok
}

// Loading reports whether no status value exists yet.
func (c *Channel) Loading() bool { return c.loading.Load() }

// State returns the push stream state.
func (c *Channel) State() State { return State(c.state.Load()) }

// Subscribe registers fn to run after every status update.
func (c *Channel) Subscribe(fn func()) (cancel func()) {
	return c.store.Subscribe(Key, fn)
}

// publish replaces the cached status wholesale.
func (c *Channel) publish(st api.StoreStatus) {
	c.store.Set(Key, st)
	c.loading.Store(false)
}

func (c *Channel) setState(s State) { c.state.Store(int32(s)) }

func (c *Channel) streamLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(Connecting)
		conn, err := c.stream.Connect(ctx)
		if err != nil {
			c.setState(Disconnected)
			c.log.Debug("status stream connect failed", "error", err)
			if !c.sleep(ctx) {
				return
			}
			continue
		}
		c.setState(Connected)
		if c.obs != nil {
			c.obs.StreamConnected()
		}

		// Unblock Next when the context dies.
		closed := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-closed:
			}
		}()

		c.readStream(conn)
		close(closed)
		conn.Close()
		c.setState(Disconnected)

		if !c.sleep(ctx) {
			return
		}
	}
}

// readStream publishes events until the connection errors.
func (c *Channel) readStream(conn StreamConn) {
	for {
		st, err := conn.Next()
		if err != nil {
			c.log.Debug("status stream read failed", "error", err)
			return
		}
		c.publish(st)
	}
}

// sleep waits the fixed reconnect delay. Returns false when ctx died.
func (c *Channel) sleep(ctx context.Context) bool {
	if c.obs != nil {
		c.obs.ReconnectScheduled()
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Channel) pollLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

// pollOnce fetches and publishes the status. Failures are swallowed so they
// never interrupt the UI; the next tick retries anyway.
func (c *Channel) pollOnce(ctx context.Context) {
	st, err := c.fetcher.StoreStatus(ctx)
	if err != nil {
		c.log.Warn("status poll failed", "error", err)
		return
	}
	c.publish(st)
	if c.obs != nil {
		c.obs.PollRefreshed()
	}
}
