package stub

import (
	"github.com/google/uuid"

	"github.com/minishop-go/minishop/pkg/api"
)

// Seed fills the catalog with a small demo data set and returns it, so the
// CLI and the tests have something to browse.
func (s *Server) Seed() api.Catalog {
	drinks := api.Category{ID: uuid.NewString(), Name: "Drinks"}
	desserts := api.Category{ID: uuid.NewString(), Name: "Desserts"}

	products := []api.Product{
		{
			ID:         uuid.NewString(),
			Name:       "Espresso",
			Price:      2.50,
			CategoryID: drinks.ID,
			Available:  true,
		},
		{
			ID:         uuid.NewString(),
			Name:       "Flat White",
			Price:      3.80,
			CategoryID: drinks.ID,
			Available:  true,
			Variants: []api.ProductVariant{
				{Name: "Regular", Price: 3.80},
				{Name: "Large", Price: 4.50},
			},
		},
		{
			ID:         uuid.NewString(),
			Name:       "Cheesecake",
			Price:      5.20,
			CategoryID: desserts.ID,
			Available:  true,
		},
		{
			ID:         uuid.NewString(),
			Name:       "Seasonal Tart",
			Price:      4.90,
			CategoryID: desserts.ID,
			Available:  false,
		},
	}

	s.mu.Lock()
	s.categories = append(s.categories, drinks, desserts)
	s.products = append(s.products, products...)
	cat := api.Catalog{
		Categories: append([]api.Category(nil), s.categories...),
		Products:   append([]api.Product(nil), s.products...),
	}
	s.mu.Unlock()
	return cat
}
