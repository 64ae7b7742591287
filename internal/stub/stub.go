// Package stub is an in-memory implementation of the storefront backend,
// wire-compatible with the production API. It backs the CLI's serve command
// and the end-to-end tests, so the client can be exercised without a real
// deployment.
package stub

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minishop-go/minishop/pkg/api"
)

// Server holds the in-memory state behind the stub API.
type Server struct {
	log      *slog.Logger
	receipts ReceiptStore

	mu         sync.Mutex
	categories []api.Category
	products   []api.Product
	carts      map[int64]*api.Cart
	orders     []*api.Order
	status     api.StoreStatus

	watchers map[chan api.StoreStatus]struct{}

	now func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithReceiptStore sets where payment receipts are persisted.
// Default: in-memory.
func WithReceiptStore(rs ReceiptStore) Option {
	return func(s *Server) { s.receipts = rs }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates an empty stub server.
func New(opts ...Option) *Server {
	s := &Server{
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		receipts: NewMemReceipts(),
		carts:    make(map[int64]*api.Cart),
		watchers: make(map[chan api.StoreStatus]struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status = api.StoreStatus{UpdatedAt: s.now().UTC()}
	return s
}

// Handler returns the stub's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/catalog", s.handleCatalog)
	r.Get("/cart", s.handleGetCart)
	r.Post("/cart", s.handleAddToCart)
	r.Patch("/cart/item", s.handleUpdateCartItem)
	r.Delete("/cart/item", s.handleRemoveCartItem)
	r.Post("/order", s.handleCreateOrder)
	r.Get("/order/last", s.handleLastOrder)
	r.Patch("/order/{id}/address", s.handleUpdateAddress)
	r.Get("/store/status", s.handleStatus)
	r.Get("/store/status/stream", s.handleStatusStream)
	r.Get("/store/status/ws", s.handleStatusWS)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireIdentity)
		r.Get("/catalog", s.handleAdminCatalog)
		r.Get("/orders", s.handleListOrders)
		r.Get("/order/{id}", s.handleGetOrder)
		r.Patch("/order/{id}/status", s.handleUpdateOrderStatus)
		r.Post("/category", s.handleCreateCategory)
		r.Patch("/category/{id}", s.handleUpdateCategory)
		r.Delete("/category/{id}", s.handleDeleteCategory)
		r.Post("/product", s.handleCreateProduct)
		r.Patch("/product/{id}", s.handleUpdateProduct)
		r.Delete("/product/{id}", s.handleDeleteProduct)
		r.Patch("/store/sleep", s.handleSleep)
		r.Post("/broadcast", s.handleBroadcast)
	})

	return r
}

// requireIdentity rejects admin calls that carry no platform identity.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Init-Data") == "" {
			detail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cat := api.Catalog{
		Categories: append([]api.Category(nil), s.categories...),
	}
	for _, p := range s.products {
		if p.Available {
			cat.Products = append(cat.Products, p)
		}
	}
	s.mu.Unlock()
	writeCachedJSON(w, r, cat)
}

func (s *Server) handleAdminCatalog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cat := api.Catalog{
		Categories: append([]api.Category(nil), s.categories...),
		Products:   append([]api.Product(nil), s.products...),
	}
	s.mu.Unlock()
	writeCachedJSON(w, r, cat)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	cart := *s.cartFor(uid)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req api.AddToCartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		detail(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}

	s.mu.Lock()
	product, ok := s.findProduct(req.ProductID)
	if !ok {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Product not found")
		return
	}
	cart := s.cartFor(req.UserID)
	added := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == req.ProductID {
			cart.Items[i].Quantity += req.Quantity
			added = true
			break
		}
	}
	if !added {
		cart.Items = append(cart.Items, api.CartItem{
			ID:          uuid.NewString(),
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    req.Quantity,
			Price:       product.Price,
			Image:       product.Image,
		})
	}
	retotal(cart)
	out := *cart
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		detail(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}

	s.mu.Lock()
	cart := s.cartFor(req.UserID)
	found := false
	for i := range cart.Items {
		if cart.Items[i].ID == req.ItemID {
			cart.Items[i].Quantity = req.Quantity
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Cart item not found")
		return
	}
	retotal(cart)
	out := *cart
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	var req api.RemoveCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	cart := s.cartFor(req.UserID)
	kept := cart.Items[:0]
	found := false
	for _, it := range cart.Items {
		if it.ID == req.ItemID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Cart item not found")
		return
	}
	cart.Items = kept
	retotal(cart)
	out := *cart
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// cartFor returns the user's cart, creating it on first use.
// Called with s.mu held.
func (s *Server) cartFor(uid int64) *api.Cart {
	cart := s.carts[uid]
	if cart == nil {
		cart = &api.Cart{ID: uuid.NewString(), UserID: uid, Items: []api.CartItem{}}
		s.carts[uid] = cart
	}
	return cart
}

// findProduct looks a product up by id. Called with s.mu held.
func (s *Server) findProduct(id string) (api.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return api.Product{}, false
}

func retotal(cart *api.Cart) {
	var total float64
	for _, it := range cart.Items {
		total += it.Price * float64(it.Quantity)
	}
	cart.TotalAmount = total
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || uid <= 0 {
		detail(w, http.StatusBadRequest, "Invalid user_id")
		return 0, false
	}
	return uid, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		detail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeCachedJSON serves v with an ETag so catalog polling clients can
// revalidate cheaply.
func writeCachedJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		detail(w, http.StatusInternalServerError, "Encoding failed")
		return
	}
	etag := fmt.Sprintf(`"%x"`, sha256.Sum256(body))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// knownUsers counts distinct users seen in carts and orders, for broadcast
// bookkeeping. Called with s.mu held.
func (s *Server) knownUsers() int {
	seen := make(map[int64]struct{})
	for uid := range s.carts {
		seen[uid] = struct{}{}
	}
	for _, o := range s.orders {
		seen[o.UserID] = struct{}{}
	}
	return len(seen)
}

// sortOrders orders newest first. Called with s.mu held.
func (s *Server) sortOrders() []*api.Order {
	out := append([]*api.Order(nil), s.orders...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
