package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

const (
	pathProduct      = "/protected/product"
	pathProductStats = "/protected/product/stats"
)

// ErrMissingProductID is returned for product calls without an id.
var ErrMissingProductID = errors.New("product id is required")

// ProductInput creates a product and its payment link.
type ProductInput struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Price       float64 `json:"price" yaml:"price"`
	Currency    string  `json:"currency,omitempty" yaml:"currency,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
}

// ProductUpdate changes the fields that are set. ID selects the product and
// is sent in the path, not the body.
type ProductUpdate struct {
	ID          string   `json:"-" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Price       *float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Active      *bool    `json:"active,omitempty" yaml:"active,omitempty"`
}

// Product is a merchant product.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	PaymentLink string    `json:"paymentLink"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProductStats summarizes the merchant's catalogue.
type ProductStats struct {
	TotalProducts  int     `json:"totalProducts"`
	ActiveProducts int     `json:"activeProducts"`
	TotalPayments  int     `json:"totalPayments"`
	TotalRevenue   float64 `json:"totalRevenue"`
}

// PaymentAmounts lists the amounts paid through one product's link.
type PaymentAmounts struct {
	ProductID string    `json:"productId"`
	Amounts   []float64 `json:"amounts"`
	Total     float64   `json:"total"`
	Count     int       `json:"count"`
}

// CreateProduct calls POST /protected/product.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	var out Product
	if err := c.send(ctx, http.MethodPost, pathProduct, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct calls PUT /protected/product/{id}.
func (c *Client) UpdateProduct(ctx context.Context, update ProductUpdate) (*Product, error) {
	if update.ID == "" {
		return nil, ErrMissingProductID
	}
	var out Product
	if err := c.send(ctx, http.MethodPut, pathProduct+"/"+url.PathEscape(update.ID), update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProductStats calls GET /protected/product/stats.
func (c *Client) ProductStats(ctx context.Context) (*ProductStats, error) {
	var out ProductStats
	if err := c.get(ctx, pathProductStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProductPaymentAmounts calls GET /protected/product/{id}/payment-amounts.
func (c *Client) ProductPaymentAmounts(ctx context.Context, productID string) (*PaymentAmounts, error) {
	if productID == "" {
		return nil, ErrMissingProductID
	}
	var out PaymentAmounts
	if err := c.get(ctx, pathProduct+"/"+url.PathEscape(productID)+"/payment-amounts", nil, &out); err != nil {
		return nil, err
	}
	if out.ProductID == "" {
		out.ProductID = productID
	}
	return &out, nil
}
