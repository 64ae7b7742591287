package shop

import (
	"context"
	"fmt"

	"github.com/minishop-go/minishop/pkg/api"
	"github.com/minishop-go/minishop/pkg/notify"
	"github.com/minishop-go/minishop/pkg/optimistic"
	"github.com/minishop-go/minishop/pkg/status"
)

// AdminCatalog returns the full catalog including unavailable products.
// Like the public catalog it refetches on every read.
func (c *Client) AdminCatalog(ctx context.Context) (api.Catalog, error) {
	return c.adminCatalog.Get(ctx)
}

// catalogKeys are invalidated together: a category or product edit must show
// up on the next read of either catalog view.
var catalogKeys = []string{KeyCatalog, KeyAdminCatalog}

// CreateCategory adds a category. The admin catalog shows it immediately
// under a temporary id; the server-assigned id replaces it on settle.
func (c *Client) CreateCategory(ctx context.Context, name string) (api.Category, error) {
	placeholder := tempID()
	cat, err := optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Catalog, api.Category]{
		Key: KeyAdminCatalog,
		Transform: func(cat api.Catalog) api.Catalog {
			cat.Categories = append(cat.Categories, api.Category{ID: placeholder, Name: name})
			return cat
		},
		Call: func(ctx context.Context) (api.Category, error) {
			return c.api.CreateCategory(ctx, api.CategoryCreate{Name: name})
		},
		Reconcile: func(local api.Catalog, server api.Category) api.Catalog {
			for i := range local.Categories {
				if local.Categories[i].ID == placeholder {
					local.Categories[i] = server
					return local
				}
			}
			local.Categories = append(local.Categories, server)
			return local
		},
		Invalidates: catalogKeys,
	})
	return cat, c.surface(err)
}

// RenameCategory renames a category.
func (c *Client) RenameCategory(ctx context.Context, id, name string) (api.Category, error) {
	cat, err := optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Catalog, api.Category]{
		Key: KeyAdminCatalog,
		Transform: func(cat api.Catalog) api.Catalog {
			for i := range cat.Categories {
				if cat.Categories[i].ID == id {
					cat.Categories[i].Name = name
					break
				}
			}
			return cat
		},
		Call: func(ctx context.Context) (api.Category, error) {
			return c.api.UpdateCategory(ctx, id, api.CategoryUpdate{Name: name})
		},
		Reconcile: func(local api.Catalog, server api.Category) api.Catalog {
			for i := range local.Categories {
				if local.Categories[i].ID == server.ID {
					local.Categories[i] = server
					break
				}
			}
			return local
		},
		Invalidates: catalogKeys,
	})
	return cat, c.surface(err)
}

// DeleteCategory asks the user for confirmation, then deletes the category
// and, matching the server's cascade, its products from the cached catalog.
func (c *Client) DeleteCategory(ctx context.Context, id, name string) error {
	ok, err := c.confirm.Confirm(ctx, fmt.Sprintf("Delete category %q and all its products?", name))
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}
	_, err = optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Catalog, struct{}]{
		Key: KeyAdminCatalog,
		Transform: func(cat api.Catalog) api.Catalog {
			cats := cat.Categories[:0]
			for _, cc := range cat.Categories {
				if cc.ID != id {
					cats = append(cats, cc)
				}
			}
			cat.Categories = cats
			prods := cat.Products[:0]
			for _, p := range cat.Products {
				if p.CategoryID != id {
					prods = append(prods, p)
				}
			}
			cat.Products = prods
			return cat
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.api.DeleteCategory(ctx, id)
		},
		Invalidates: catalogKeys,
	})
	return c.surface(err)
}

// CreateProduct adds a product under a temporary id until the server
// assigns the real one.
func (c *Client) CreateProduct(ctx context.Context, req api.ProductCreate) (api.Product, error) {
	placeholder := tempID()
	p, err := optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Catalog, api.Product]{
		Key: KeyAdminCatalog,
		Transform: func(cat api.Catalog) api.Catalog {
			cat.Products = append(cat.Products, api.Product{
				ID:          placeholder,
				Name:        req.Name,
				Description: req.Description,
				Price:       req.Price,
				Image:       req.Image,
				Images:      req.Images,
				CategoryID:  req.CategoryID,
				Available:   req.Available,
				Variants:    req.Variants,
			})
			return cat
		},
		Call: func(ctx context.Context) (api.Product, error) {
			return c.api.CreateProduct(ctx, req)
		},
		Reconcile: func(local api.Catalog, server api.Product) api.Catalog {
			for i := range local.Products {
				if local.Products[i].ID == placeholder {
					local.Products[i] = server
					return local
				}
			}
			local.Products = append(local.Products, server)
			return local
		},
		Invalidates: catalogKeys,
	})
	return p, c.surface(err)
}

// UpdateProduct patches a product. Nil request fields stay unchanged.
func (c *Client) UpdateProduct(ctx context.Context, id string, req api.ProductUpdate) (api.Product, error) {
	p, err := optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Catalog, api.Product]{
		Key: KeyAdminCatalog,
		Transform: func(cat api.Catalog) api.Catalog {
			for i := range cat.Products {
				if cat.Products[i].ID == id {
					applyProductPatch(&cat.Products[i], req)
					break
				}
			}
			return cat
		},
		Call: func(ctx context.Context) (api.Product, error) {
			return c.api.UpdateProduct(ctx, id, req)
		},
		Reconcile: func(local api.Catalog, server api.Product) api.Catalog {
			for i := range local.Products {
				if local.Products[i].ID == server.ID {
					local.Products[i] = server
					break
				}
			}
			return local
		},
		Invalidates: catalogKeys,
	})
	return p, c.surface(err)
}

// DeleteProduct asks for confirmation and deletes the product. A delete
// issued while an edit of the same product is still in flight queues behind
// it and wins.
func (c *Client) DeleteProduct(ctx context.Context, id, name string) error {
	ok, err := c.confirm.Confirm(ctx, fmt.Sprintf("Delete product %q?", name))
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}
	_, err = optimistic.Run(ctx, c.coord, optimistic.Mutation[api.Catalog, struct{}]{
		Key: KeyAdminCatalog,
		Transform: func(cat api.Catalog) api.Catalog {
			kept := cat.Products[:0]
			for _, p := range cat.Products {
				if p.ID != id {
					kept = append(kept, p)
				}
			}
			cat.Products = kept
			return cat
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.api.DeleteProduct(ctx, id)
		},
		Invalidates: catalogKeys,
	})
	return c.surface(err)
}

func applyProductPatch(p *api.Product, req api.ProductUpdate) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Image != nil {
		p.Image = *req.Image
	}
	if req.Images != nil {
		p.Images = req.Images
	}
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
	}
	if req.Available != nil {
		p.Available = *req.Available
	}
	if req.Variants != nil {
		p.Variants = req.Variants
	}
}

// Orders lists orders for the admin console, optionally filtered by status.
func (c *Client) Orders(ctx context.Context, st api.OrderStatus, limit int) ([]api.Order, error) {
	orders, err := c.api.ListOrders(ctx, st, limit)
	return orders, c.surface(err)
}

// Order fetches one order by id.
func (c *Client) Order(ctx context.Context, orderID string) (api.Order, error) {
	order, err := c.api.GetOrder(ctx, orderID)
	return order, c.surface(err)
}

// SetOrderStatus moves an order through its lifecycle.
func (c *Client) SetOrderStatus(ctx context.Context, orderID string, st api.OrderStatus) (api.Order, error) {
	order, err := c.api.UpdateOrderStatus(ctx, orderID, st)
	return order, c.surface(err)
}

// ToggleSleep flips the store's sleep mode. The cached status flips
// immediately; a failure rolls it back and surfaces the reason. On success a
// status refresh is forced so the authoritative document lands faster than
// the next poll.
func (c *Client) ToggleSleep(ctx context.Context, sleep bool, message string) (api.StoreStatus, error) {
	st, err := optimistic.Run(ctx, c.coord, optimistic.Mutation[api.StoreStatus, api.StoreStatus]{
		Key: status.Key,
		Transform: func(st api.StoreStatus) api.StoreStatus {
			st.IsSleepMode = sleep
			st.SleepMessage = message
			return st
		},
		Call: func(ctx context.Context) (api.StoreStatus, error) {
			return c.api.ToggleSleep(ctx, api.SleepRequest{Sleep: sleep, Message: message})
		},
	})
	if err != nil {
		return api.StoreStatus{}, c.surface(err)
	}
	if rerr := c.status.Refresh(ctx); rerr != nil {
		c.log.Debug("status refresh after sleep toggle failed", "error", rerr)
	}
	return st, nil
}

// Broadcast sends a message to a user segment and reports delivery counts.
func (c *Client) Broadcast(ctx context.Context, req api.BroadcastRequest) (api.BroadcastResult, error) {
	res, err := c.api.Broadcast(ctx, req)
	if err != nil {
		return api.BroadcastResult{}, c.surface(err)
	}
	notify.Success(c.notify, fmt.Sprintf("Broadcast sent to %d of %d users", res.SentCount, res.TotalCount))
	return res, nil
}

// Health checks backend liveness, for diagnostics surfaces.
func (c *Client) Health(ctx context.Context) error {
	return c.api.Health(ctx)
}
