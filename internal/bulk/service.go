package bulk

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/engine/batch"
	"github.com/openlyhq/openly/internal/logging"
)

// PaymentAPI is the payment intent surface of the REST client.
type PaymentAPI interface {
	CreatePaymentIntent(ctx context.Context, req api.PaymentIntentRequest) (*api.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, ref api.PaymentIntentRef) (*api.PaymentIntent, error)
	SyncPaymentIntent(ctx context.Context, ref api.PaymentIntentRef) (*api.PaymentIntent, error)
}

// ProductAPI is the product surface of the REST client.
type ProductAPI interface {
	CreateProduct(ctx context.Context, in api.ProductInput) (*api.Product, error)
	UpdateProduct(ctx context.Context, update api.ProductUpdate) (*api.Product, error)
	ProductPaymentAmounts(ctx context.Context, productID string) (*api.PaymentAmounts, error)
}

// WalletAPI is the wallet surface of the REST client.
type WalletAPI interface {
	Withdraw(ctx context.Context, req api.WithdrawalRequest, idempotencyKey string) (*api.Withdrawal, error)
	WithdrawBatch(ctx context.Context, reqs []api.WithdrawalRequest, idempotencyKey string) (*api.BatchWithdrawal, error)
	Balance(ctx context.Context, q api.BalanceQuery) (*api.Balance, error)
	PayoutTransactions(ctx context.Context, q api.PayoutTransactionQuery) (*api.PayoutTransactionPage, error)
}

// Client is everything the service needs; *api.Client satisfies it.
type Client interface {
	PaymentAPI
	ProductAPI
	WalletAPI
}

// PolicySource resolves the policy of an operation, for example from the
// configuration file's overrides.
type PolicySource func(op batch.Operation) (batch.Policy, error)

// Service runs bulk operations against the backend.
type Service struct {
	client   Client
	policies PolicySource
	observer batch.Observer
	newKey   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithObserver receives start, progress and finish notifications of every batch.
func WithObserver(o batch.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithPolicySource replaces the built-in policies.
func WithPolicySource(src PolicySource) Option {
	return func(s *Service) {
		if src != nil {
			s.policies = src
		}
	}
}

// WithKeyGenerator replaces the idempotency key generator.
func WithKeyGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newKey = gen
		}
	}
}

// NewService returns a service over client.
func NewService(client Client, opts ...Option) *Service {
	s := &Service{
		client:   client,
		policies: batch.DefaultPolicy,
		newKey:   func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the policy the service applies to op.
func (s *Service) Policy(op batch.Operation) (batch.Policy, error) {
	return s.policies(op)
}

// run resolves op's policy and executes fn over items.
func run[TIn, TOut any](
	ctx context.Context,
	s *Service,
	op batch.Operation,
	items []TIn,
	fn batch.ItemFunc[TIn, TOut],
	amount batch.AmountFunc[TIn, TOut],
) (*batch.Report[TIn, TOut], error) {
	policy, err := s.policies(op)
	if err != nil {
		return nil, err
	}

	proc, err := batch.NewProcessor[TIn, TOut](policy)
	if err != nil {
		return nil, err
	}
	if s.observer != nil {
		proc.WithObserver(s.observer)
	}
	if amount != nil {
		proc.WithAmount(amount)
	}

	log := logging.FromContext(ctx)
	log.Debug().Ctx(ctx).
		Str("component", "bulk").
		Str("operation", string(op)).
		Int("max_items", policy.MaxItems).
		Int("window", policy.WindowSize()).
		Msg("running bulk operation")

	return proc.Run(ctx, items, fn)
}
