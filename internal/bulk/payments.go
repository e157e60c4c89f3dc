package bulk

import (
	"context"
	"errors"
	"fmt"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/engine/batch"
)

// Item validation errors. They fail the item without a network call.
var (
	ErrMissingPaymentLink = errors.New("paymentLink is required")
	ErrMissingIntentID    = errors.New("paymentIntentId is required")
	ErrNonPositiveAmount  = errors.New("amount must be greater than zero")
)

type (
	// PaymentReport is the report of a payment intent creation batch.
	PaymentReport = batch.Report[api.PaymentIntentRequest, *api.PaymentIntent]
	// IntentReport is the report of a cancel or sync batch.
	IntentReport = batch.Report[api.PaymentIntentRef, *api.PaymentIntent]
)

// CreatePaymentIntents opens one payment intent per request. The report's
// total amount is the sum of the requested amounts of created intents,
// whatever unit the backend echoes back.
func (s *Service) CreatePaymentIntents(ctx context.Context, reqs []api.PaymentIntentRequest) (*PaymentReport, error) {
	return run(ctx, s, batch.OpPayments, reqs,
		func(ctx context.Context, req api.PaymentIntentRequest) (*api.PaymentIntent, error) {
			if req.PaymentLink == "" {
				return nil, ErrMissingPaymentLink
			}
			if req.Amount <= 0 {
				return nil, fmt.Errorf("%w: got %g", ErrNonPositiveAmount, req.Amount)
			}
			return s.client.CreatePaymentIntent(ctx, req)
		},
		requestedAmount,
	)
}

// CancelPaymentIntents cancels intents one at a time, in input order.
func (s *Service) CancelPaymentIntents(ctx context.Context, refs []api.PaymentIntentRef) (*IntentReport, error) {
	return run(ctx, s, batch.OpCancellations, refs,
		func(ctx context.Context, ref api.PaymentIntentRef) (*api.PaymentIntent, error) {
			if ref.PaymentIntentID == "" {
				return nil, ErrMissingIntentID
			}
			return s.client.CancelPaymentIntent(ctx, ref)
		},
		nil,
	)
}

// SyncPaymentIntents refreshes intents from the card processor.
func (s *Service) SyncPaymentIntents(ctx context.Context, refs []api.PaymentIntentRef) (*IntentReport, error) {
	return run(ctx, s, batch.OpSyncs, refs,
		func(ctx context.Context, ref api.PaymentIntentRef) (*api.PaymentIntent, error) {
			if ref.PaymentIntentID == "" {
				return nil, ErrMissingIntentID
			}
			return s.client.SyncPaymentIntent(ctx, ref)
		},
		nil,
	)
}

func requestedAmount(in api.PaymentIntentRequest, _ *api.PaymentIntent) float64 {
	return in.Amount
}
