package catalog

import (
	"context"
	"strings"

	"github.com/smallbiznis/panucci/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(New),
)

// Service serves the product catalog held in configuration.
type Service struct {
	holder *config.CatalogHolder
}

func New(holder *config.CatalogHolder) *Service {
	return &Service{holder: holder}
}

// List returns a copy of the current catalog.
func (s *Service) List(ctx context.Context) []config.Product {
	products := s.holder.Get().Products
	out := make([]config.Product, len(products))
	copy(out, products)
	return out
}

// Lookup finds a product by id.
func (s *Service) Lookup(ctx context.Context, productID string) (config.Product, bool) {
	productID = strings.TrimSpace(productID)
	for _, p := range s.holder.Get().Products {
		if p.ID == productID {
			return p, true
		}
	}
	return config.Product{}, false
}
