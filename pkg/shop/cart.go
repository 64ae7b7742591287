package shop

import (
	"context"

	"github.com/google/uuid"

	"github.com/minishop-go/minishop/pkg/api"
	"github.com/minishop-go/minishop/pkg/optimistic"
)

// tempID returns a client-generated placeholder id for speculative list
// entries. The server-assigned id replaces it on reconcile.
func tempID() string {
	return "tmp-" + uuid.NewString()
}

// Cart returns the user's cart, refetching when the cached copy is older
// than CartStaleAfter.
func (c *Client) Cart(ctx context.Context) (api.Cart, error) {
	return c.cart.Get(ctx)
}

// RefreshCart bypasses the freshness window and refetches the cart.
func (c *Client) RefreshCart(ctx context.Context) (api.Cart, error) {
	return c.cart.Refetch(ctx)
}

// AddToCart adds quantity units of a product. The cached cart updates
// immediately; the server response replaces it on settle. Rapid repeated
// calls for the same cart serialize, so no tap is lost to a race.
func (c *Client) AddToCart(ctx context.Context, product api.Product, quantity int) (api.Cart, error) {
	uid, err := c.userID(ctx)
	if err != nil {
		return api.Cart{}, c.surface(err)
	}
	cart, err := optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Cart, api.Cart]{
		Key: KeyCart,
		Transform: func(cart api.Cart) api.Cart {
			for i := range cart.Items {
				if cart.Items[i].ProductID == product.ID {
					cart.Items[i].Quantity += quantity
					return recalc(cart)
				}
			}
			cart.Items = append(cart.Items, api.CartItem{
				ID:          tempID(),
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    quantity,
				Price:       product.Price,
				Image:       product.Image,
			})
			return recalc(cart)
		},
		Call: func(ctx context.Context) (api.Cart, error) {
			return c.api.AddToCart(ctx, api.AddToCartRequest{
				UserID:    uid,
				ProductID: product.ID,
				Quantity:  quantity,
			})
		},
	})
	return cart, c.surface(err)
}

// SetCartItemQuantity sets the quantity of an existing cart line.
func (c *Client) SetCartItemQuantity(ctx context.Context, itemID string, quantity int) (api.Cart, error) {
	if quantity <= 0 {
		return c.RemoveCartItem(ctx, itemID)
	}
	uid, err := c.userID(ctx)
	if err != nil {
		return api.Cart{}, c.surface(err)
	}
	cart, err := optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Cart, api.Cart]{
		Key: KeyCart,
		Transform: func(cart api.Cart) api.Cart {
			for i := range cart.Items {
				if cart.Items[i].ID == itemID {
					cart.Items[i].Quantity = quantity
					break
				}
			}
			return recalc(cart)
		},
		Call: func(ctx context.Context) (api.Cart, error) {
			return c.api.UpdateCartItem(ctx, api.UpdateCartItemRequest{
				UserID:   uid,
				ItemID:   itemID,
				Quantity: quantity,
			})
		},
	})
	return cart, c.surface(err)
}

// RemoveCartItem removes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, itemID string) (api.Cart, error) {
	uid, err := c.userID(ctx)
	if err != nil {
		return api.Cart{}, c.surface(err)
	}
	cart, err := optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Cart, api.Cart]{
		Key: KeyCart,
		Transform: func(cart api.Cart) api.Cart {
			kept := cart.Items[:0]
			for _, it := range cart.Items {
				if it.ID != itemID {
					kept = append(kept, it)
				}
			}
			cart.Items = kept
			return recalc(cart)
		},
		Call: func(ctx context.Context) (api.Cart, error) {
			return c.api.RemoveCartItem(ctx, api.RemoveCartItemRequest{
				UserID: uid,
				ItemID: itemID,
			})
		},
	})
	return cart, c.surface(err)
}

// recalc recomputes the cart total from its lines.
func recalc(cart api.Cart) api.Cart {
	var total float64
	for _, it := range cart.Items {
		total += it.Price * float64(it.Quantity)
	}
	cart.TotalAmount = total
	return cart
}
