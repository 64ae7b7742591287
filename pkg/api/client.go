package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Client is the typed surface over the backend HTTP contract. Every method
// performs exactly one request; caching, deduplication and retries live in
// the layers above.
type Client struct {
	t *Transport
}

// NewClient creates a Client over the given transport.
func NewClient(t *Transport) *Client {
	return &Client{t: t}
}

// Transport exposes the underlying transport, mainly for the status channel
// which streams from the same origin.
func (c *Client) Transport() *Transport { return c.t }

// Catalog fetches the public catalog.
func (c *Client) Catalog(ctx context.Context) (Catalog, error) {
	var out Catalog
	err := c.t.Do(ctx, http.MethodGet, "/catalog", nil, &out)
	return out, err
}

// AdminCatalog fetches the catalog through the admin endpoint.
func (c *Client) AdminCatalog(ctx context.Context) (Catalog, error) {
	var out Catalog
	err := c.t.Do(ctx, http.MethodGet, "/admin/catalog", nil, &out)
	return out, err
}

// GetCart fetches the user's cart, creating an empty one server-side if none
// exists.
func (c *Client) GetCart(ctx context.Context, userID int64) (Cart, error) {
	var out Cart
	err := c.t.Do(ctx, http.MethodGet, fmt.Sprintf("/cart?user_id=%d", userID), nil, &out)
	return out, err
}

// AddToCart adds quantity of a product and returns the full updated cart.
func (c *Client) AddToCart(ctx context.Context, req AddToCartRequest) (Cart, error) {
	var out Cart
	err := c.t.Do(ctx, http.MethodPost, "/cart", req, &out)
	return out, err
}

// UpdateCartItem sets a line's quantity and returns the full updated cart.
func (c *Client) UpdateCartItem(ctx context.Context, req UpdateCartItemRequest) (Cart, error) {
	var out Cart
	err := c.t.Do(ctx, http.MethodPatch, "/cart/item", req, &out)
	return out, err
}

// RemoveCartItem deletes a line and returns the full updated cart.
func (c *Client) RemoveCartItem(ctx context.Context, req RemoveCartItemRequest) (Cart, error) {
	var out Cart
	err := c.t.Do(ctx, http.MethodDelete, "/cart/item", req, &out)
	return out, err
}

// CreateOrder submits the checkout form as multipart (text fields plus the
// payment receipt file) and returns the created order.
func (c *Client) CreateOrder(ctx context.Context, userID int64, form OrderForm) (Order, error) {
	fields := map[string]string{
		"user_id": fmt.Sprintf("%d", userID),
		"name":    form.Name,
		"phone":   form.Phone,
		"address": form.Address,
	}
	if form.Comment != "" {
		fields["comment"] = form.Comment
	}
	body, err := NewMultipart(fields, form.Receipt)
	if err != nil {
		return Order{}, err
	}
	var out Order
	err = c.t.Do(ctx, http.MethodPost, "/order", body, &out)
	return out, err
}

// LastOrder fetches the user's most recent order. ok is false when the user
// has none.
func (c *Client) LastOrder(ctx context.Context, userID int64) (Order, bool, error) {
	var out *Order
	err := c.t.Do(ctx, http.MethodGet, fmt.Sprintf("/order/last?user_id=%d", userID), nil, &out)
	if err != nil || out == nil {
		return Order{}, false, err
	}
	return *out, true, nil
}

// UpdateOrderAddress changes the delivery address of an order that has not
// shipped yet.
func (c *Client) UpdateOrderAddress(ctx context.Context, orderID string, req UpdateAddressRequest) (Order, error) {
	var out Order
	err := c.t.Do(ctx, http.MethodPatch, "/order/"+url.PathEscape(orderID)+"/address", req, &out)
	return out, err
}

// ListOrders lists orders for the admin console, optionally filtered by
// status. limit <= 0 uses the server default.
func (c *Client) ListOrders(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/admin/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Order
	err := c.t.Do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// GetOrder fetches a single order for the admin console.
func (c *Client) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var out Order
	err := c.t.Do(ctx, http.MethodGet, "/admin/order/"+url.PathEscape(orderID), nil, &out)
	return out, err
}

// UpdateOrderStatus changes an order's status.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus) (Order, error) {
	var out Order
	err := c.t.Do(ctx, http.MethodPatch, "/admin/order/"+url.PathEscape(orderID)+"/status",
		UpdateOrderStatusRequest{Status: status}, &out)
	return out, err
}

// CreateCategory creates a category and returns it with the server-assigned id.
func (c *Client) CreateCategory(ctx context.Context, req CategoryCreate) (Category, error) {
	var out Category
	err := c.t.Do(ctx, http.MethodPost, "/admin/category", req, &out)
	return out, err
}

// UpdateCategory renames a category.
func (c *Client) UpdateCategory(ctx context.Context, id string, req CategoryUpdate) (Category, error) {
	var out Category
	err := c.t.Do(ctx, http.MethodPatch, "/admin/category/"+url.PathEscape(id), req, &out)
	return out, err
}

// DeleteCategory deletes a category and all its products.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.t.Do(ctx, http.MethodDelete, "/admin/category/"+url.PathEscape(id), nil, nil)
}

// CreateProduct creates a product.
func (c *Client) CreateProduct(ctx context.Context, req ProductCreate) (Product, error) {
	var out Product
	err := c.t.Do(ctx, http.MethodPost, "/admin/product", req, &out)
	return out, err
}

// UpdateProduct patches a product.
func (c *Client) UpdateProduct(ctx context.Context, id string, req ProductUpdate) (Product, error) {
	var out Product
	err := c.t.Do(ctx, http.MethodPatch, "/admin/product/"+url.PathEscape(id), req, &out)
	return out, err
}

// DeleteProduct deletes a product.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.t.Do(ctx, http.MethodDelete, "/admin/product/"+url.PathEscape(id), nil, nil)
}

// StoreStatus fetches the current store status.
func (c *Client) StoreStatus(ctx context.Context) (StoreStatus, error) {
	var out StoreStatus
	err := c.t.Do(ctx, http.MethodGet, "/store/status", nil, &out)
	return out, err
}

// ToggleSleep flips the global sleep mode and returns the authoritative
// status.
func (c *Client) ToggleSleep(ctx context.Context, req SleepRequest) (StoreStatus, error) {
	var out StoreStatus
	err := c.t.Do(ctx, http.MethodPatch, "/admin/store/sleep", req, &out)
	return out, err
}

// Broadcast sends an announcement to a user segment.
func (c *Client) Broadcast(ctx context.Context, req BroadcastRequest) (BroadcastResult, error) {
	var out BroadcastResult
	err := c.t.Do(ctx, http.MethodPost, "/admin/broadcast", req, &out)
	return out, err
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.t.Do(ctx, http.MethodGet, "/health", nil, nil)
}
