package shop

import (
	"context"

	"github.com/minishop-go/minishop/pkg/api"
)

// Checkout places an order from the current cart. The receipt file travels
// in the same multipart request as the contact fields. On success the server
// has cleared the cart, so the cached cart is dropped and the next read
// refetches.
func (c *Client) Checkout(ctx context.Context, form api.OrderForm) (api.Order, error) {
	uid, err := c.userID(ctx)
	if err != nil {
		return api.Order{}, c.surface(err)
	}
	order, err := c.api.CreateOrder(ctx, uid, form)
	if err != nil {
		return api.Order{}, c.surface(err)
	}
	c.store.Drop(KeyCart)
	return order, nil
}

// LastOrder returns the user's most recent order, or ok=false when they have
// none.
func (c *Client) LastOrder(ctx context.Context) (api.Order, bool, error) {
	uid, err := c.userID(ctx)
	if err != nil {
		return api.Order{}, false, c.surface(err)
	}
	order, ok, err := c.api.LastOrder(ctx, uid)
	return order, ok, c.surface(err)
}

// UpdateOrderAddress changes the delivery address of an order that has not
// shipped yet. The server rejects edits once the status is final.
func (c *Client) UpdateOrderAddress(ctx context.Context, orderID, address string) (api.Order, error) {
	uid, err := c.userID(ctx)
	if err != nil {
		return api.Order{}, c.surface(err)
	}
	order, err := c.api.UpdateOrderAddress(ctx, orderID, api.UpdateAddressRequest{
		UserID:  uid,
		Address: address,
	})
	return order, c.surface(err)
}
