package bulk

import (
	"context"
	"errors"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/engine/batch"
)

// Product item validation errors.
var (
	ErrMissingProductName = errors.New("product name is required")
	ErrMissingProductID   = errors.New("product id is required")
)

type (
	// ProductReport is the report of a product creation batch.
	ProductReport = batch.Report[api.ProductInput, *api.Product]
	// ProductUpdateReport is the report of a product update batch.
	ProductUpdateReport = batch.Report[api.ProductUpdate, *api.Product]
	// AnalyticsReport is the report of a per-product payment amounts batch,
	// keyed by product id.
	AnalyticsReport = batch.Report[string, *api.PaymentAmounts]
)

// CreateProducts creates one product per input.
func (s *Service) CreateProducts(ctx context.Context, inputs []api.ProductInput) (*ProductReport, error) {
	return run(ctx, s, batch.OpProducts, inputs,
		func(ctx context.Context, in api.ProductInput) (*api.Product, error) {
			if in.Name == "" {
				return nil, ErrMissingProductName
			}
			if in.Price <= 0 {
				return nil, ErrNonPositiveAmount
			}
			return s.client.CreateProduct(ctx, in)
		},
		nil,
	)
}

// UpdateProducts applies updates one at a time, in input order, so a later
// update of the same product wins.
func (s *Service) UpdateProducts(ctx context.Context, updates []api.ProductUpdate) (*ProductUpdateReport, error) {
	return run(ctx, s, batch.OpProductUpdates, updates,
		func(ctx context.Context, u api.ProductUpdate) (*api.Product, error) {
			if u.ID == "" {
				return nil, ErrMissingProductID
			}
			return s.client.UpdateProduct(ctx, u)
		},
		nil,
	)
}

// ProductAnalytics fetches the payment amounts of each product. The total
// amount is the revenue across the products that answered.
func (s *Service) ProductAnalytics(ctx context.Context, productIDs []string) (*AnalyticsReport, error) {
	return run(ctx, s, batch.OpAnalytics, productIDs,
		func(ctx context.Context, id string) (*api.PaymentAmounts, error) {
			if id == "" {
				return nil, ErrMissingProductID
			}
			return s.client.ProductPaymentAmounts(ctx, id)
		},
		func(_ string, out *api.PaymentAmounts) float64 {
			if out == nil {
				return 0
			}
			return out.Total
		},
	)
}
