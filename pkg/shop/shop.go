// Package shop is the application layer of the storefront client. It
// composes the sync engine (cache store, deduplicator, optimistic mutation
// coordinator, status channel) into the operations the storefront and the
// admin console actually call.
package shop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/minishop-go/minishop/pkg/api"
	"github.com/minishop-go/minishop/pkg/dedup"
	"github.com/minishop-go/minishop/pkg/host"
	"github.com/minishop-go/minishop/pkg/notify"
	"github.com/minishop-go/minishop/pkg/optimistic"
	"github.com/minishop-go/minishop/pkg/resource"
	"github.com/minishop-go/minishop/pkg/status"
	"github.com/minishop-go/minishop/pkg/store"
)

// Cache keys. Status lives under status.Key and is owned by the channel.
const (
	KeyCatalog      = "catalog"
	KeyAdminCatalog = "admin-catalog"
	KeyCart         = "cart"
)

// CartStaleAfter is how long a fetched cart is served without a refetch.
// Catalog resources use no such window; they refetch on every read so admin
// edits show up on the next navigation.
const CartStaleAfter = 60 * time.Second

// ErrDeclined is returned when the user dismisses a confirmation popup.
var ErrDeclined = errors.New("shop: declined by user")

// Metrics aggregates the engine observer interfaces. *metrics.Set satisfies
// it; any subset can be faked in tests.
type Metrics interface {
	dedup.Observer
	resource.Observer
	optimistic.Observer
	status.Observer
}

// Config configures a Client.
type Config struct {
	// API is the typed backend client. Required.
	API *api.Client

	// Identity resolves the current platform user. Required for cart and
	// order operations.
	Identity host.IdentitySource

	// Confirm asks the user before destructive admin operations.
	// Default: host.AlwaysConfirm.
	Confirm host.Confirmer

	// Notify receives user-facing failure messages. Default: drop them.
	Notify notify.Notifier

	// Stream overrides the status push transport. Default: SSE.
	Stream status.StreamTransport

	// Metrics observes the engine. Optional.
	Metrics Metrics

	Logger *slog.Logger
}

// Client is the storefront application client.
//
// All methods are safe for concurrent use. Mutating methods speculate on the
// shared cache and settle against the server; read methods serve cached
// values within their staleness window.
type Client struct {
	api     *api.Client
	ident   host.IdentitySource
	confirm host.Confirmer
	notify  notify.Notifier
	log     *slog.Logger

	store  *store.Store
	dedup  *dedup.Deduplicator
	coord  *optimistic.Coordinator
	status *status.Channel

	catalog      *resource.Resource[api.Catalog]
	adminCatalog *resource.Resource[api.Catalog]
	cart         *resource.Resource[api.Cart]
}

// New creates a Client.
func New(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	confirm := cfg.Confirm
	if confirm == nil {
		confirm = host.AlwaysConfirm
	}
	notifier := cfg.Notify
	if notifier == nil {
		notifier = notify.Discard
	}
	stream := cfg.Stream
	if stream == nil {
		stream = status.NewSSETransport(cfg.API.Transport())
	}

	st := store.New()
	var dedupOpts []dedup.Option
	if cfg.Metrics != nil {
		dedupOpts = append(dedupOpts, dedup.WithObserver(cfg.Metrics))
	}
	d := dedup.New(dedupOpts...)

	var mutObs optimistic.Observer
	var statusObs status.Observer
	if cfg.Metrics != nil {
		mutObs = cfg.Metrics
		statusObs = cfg.Metrics
	}

	c := &Client{
		api:     cfg.API,
		ident:   cfg.Identity,
		confirm: confirm,
		notify:  notifier,
		log:     log,
		store:   st,
		dedup:   d,
		coord: optimistic.NewCoordinator(optimistic.Config{
			Store:    st,
			Logger:   log,
			Observer: mutObs,
		}),
		status: status.New(status.Config{
			Store:    st,
			Fetcher:  cfg.API,
			Stream:   stream,
			Logger:   log,
			Observer: statusObs,
		}),
	}

	c.catalog = resource.New(st, d, KeyCatalog, cfg.API.Catalog).RefreshOnFocus()
	c.adminCatalog = resource.New(st, d, KeyAdminCatalog, cfg.API.AdminCatalog)
	c.cart = resource.New(st, d, KeyCart, c.fetchCart).
		StaleAfter(CartStaleAfter).
		RefreshOnFocus()
	if cfg.Metrics != nil {
		c.catalog.Observe(cfg.Metrics)
		c.adminCatalog.Observe(cfg.Metrics)
		c.cart.Observe(cfg.Metrics)
	}
	return c
}

// Start brings up the status channel (baseline poll, push stream, fallback
// poll). Safe to call once per client.
func (c *Client) Start(ctx context.Context) {
	c.status.Start(ctx)
}

// Stop tears down the status channel.
func (c *Client) Stop() {
	c.status.Stop()
}

// HandleFocus refetches resources that opted into focus refresh. The host
// calls it when the mini-app returns to the foreground.
func (c *Client) HandleFocus(ctx context.Context) {
	if err := c.catalog.HandleFocus(ctx); err != nil {
		c.log.Debug("focus refetch failed", "key", KeyCatalog, "error", err)
	}
	if err := c.cart.HandleFocus(ctx); err != nil {
		c.log.Debug("focus refetch failed", "key", KeyCart, "error", err)
	}
}

// Catalog returns the public catalog. Every call refetches; the catalog has
// no freshness window.
func (c *Client) Catalog(ctx context.Context) (api.Catalog, error) {
	return c.catalog.Get(ctx)
}

// PeekCatalog returns the cached public catalog without a network call.
func (c *Client) PeekCatalog() (api.Catalog, bool) {
	return c.catalog.Peek()
}

// PeekAdminCatalog returns the cached admin catalog without a network call.
// Render surfaces read speculative state through it while a mutation is in
// flight.
func (c *Client) PeekAdminCatalog() (api.Catalog, bool) {
	return c.adminCatalog.Peek()
}

// PeekCart returns the cached cart without a network call.
func (c *Client) PeekCart() (api.Cart, bool) {
	return c.cart.Peek()
}

// SubscribeCart registers fn to run after every cached cart change,
// speculative or settled.
func (c *Client) SubscribeCart(fn func()) (cancel func()) {
	return c.cart.Subscribe(fn)
}

// SubscribeAdminCatalog registers fn to run after every cached admin catalog
// change.
func (c *Client) SubscribeAdminCatalog(fn func()) (cancel func()) {
	return c.adminCatalog.Subscribe(fn)
}

// Status returns the cached store status, if any poll or push has delivered
// one yet.
func (c *Client) Status() (api.StoreStatus, bool) {
	return c.status.Current()
}

// RefreshStatus forces one immediate status fetch, for callers who just
// changed something status-affecting and do not want to wait out the poll.
func (c *Client) RefreshStatus(ctx context.Context) error {
	return c.status.Refresh(ctx)
}

// SubscribeStatus registers fn to run after every status update.
func (c *Client) SubscribeStatus(fn func()) (cancel func()) {
	return c.status.Subscribe(fn)
}

// StreamState reports the push stream state, for diagnostics surfaces.
func (c *Client) StreamState() status.State {
	return c.status.State()
}

// userID resolves the platform user id for endpoints that carry it in the
// payload rather than the identity headers.
func (c *Client) userID(ctx context.Context) (int64, error) {
	id, err := c.ident.Identity(ctx)
	if err != nil {
		return 0, &api.Error{Kind: api.KindUnauthenticated, Message: "identity could not be resolved", Wrapped: err}
	}
	return id.UserID, nil
}

func (c *Client) fetchCart(ctx context.Context) (api.Cart, error) {
	uid, err := c.userID(ctx)
	if err != nil {
		return api.Cart{}, err
	}
	return c.api.GetCart(ctx, uid)
}

// surface reports a failed operation to the user and passes the error
// through unchanged.
func (c *Client) surface(err error) error {
	if err != nil {
		notify.Failure(c.notify, err)
	}
	return err
}
