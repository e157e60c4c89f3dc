package api

import (
	"context"
	"net/http"
)

// Payment intent endpoints.
const (
	pathPaymentIntent       = "/public/payment/intent"
	pathPaymentIntentCancel = "/public/payment/intent/cancel"
	pathPaymentIntentSync   = "/public/payment/intent/sync"
)

// PaymentIntentRequest opens a checkout for a product's payment link.
type PaymentIntentRequest struct {
	PaymentLink   string            `json:"paymentLink" yaml:"paymentLink"`
	Amount        float64           `json:"amount" yaml:"amount"`
	Currency      string            `json:"currency,omitempty" yaml:"currency,omitempty"`
	CustomerEmail string            `json:"customerEmail,omitempty" yaml:"customerEmail,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// PaymentIntentRef identifies an existing intent for cancel and sync.
type PaymentIntentRef struct {
	PaymentIntentID string `json:"paymentIntentId" yaml:"paymentIntentId"`
	PaymentLink     string `json:"paymentLink,omitempty" yaml:"paymentLink,omitempty"`
	Reason          string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// PaymentIntent is the backend's view of a card payment.
type PaymentIntent struct {
	ID           string  `json:"id"`
	PaymentLink  string  `json:"paymentLink"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	ClientSecret string  `json:"clientSecret,omitempty"`
}

// CreatePaymentIntent calls POST /public/payment/intent.
func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	var out PaymentIntent
	if err := c.send(ctx, http.MethodPost, pathPaymentIntent, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelPaymentIntent calls POST /public/payment/intent/cancel.
func (c *Client) CancelPaymentIntent(ctx context.Context, ref PaymentIntentRef) (*PaymentIntent, error) {
	var out PaymentIntent
	if err := c.send(ctx, http.MethodPost, pathPaymentIntentCancel, ref, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncPaymentIntent calls POST /public/payment/intent/sync, which refreshes
// the stored intent from the card processor.
func (c *Client) SyncPaymentIntent(ctx context.Context, ref PaymentIntentRef) (*PaymentIntent, error) {
	var out PaymentIntent
	if err := c.send(ctx, http.MethodPost, pathPaymentIntentSync, PaymentIntentRef{
		PaymentIntentID: ref.PaymentIntentID,
		PaymentLink:     ref.PaymentLink,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
