package batch

import (
	"errors"
	"fmt"
	"sort"
)

// MaxBatchSize is the hard ceiling for any policy's MaxItems.
const MaxBatchSize = 1000

// Operation names a bulk operation.
type Operation string

// Known bulk operations.
const (
	OpPayments           Operation = "payments"
	OpCancellations      Operation = "cancellations"
	OpSyncs              Operation = "syncs"
	OpProducts           Operation = "products"
	OpProductUpdates     Operation = "product-updates"
	OpAnalytics          Operation = "analytics"
	OpWithdrawals        Operation = "withdrawals"
	OpBalanceChecks      Operation = "balance-checks"
	OpTransactionQueries Operation = "transaction-queries"
)

// Strategy selects how the items of a batch are scheduled.
type Strategy int

const (
	// StrategySequential awaits each item before starting the next.
	StrategySequential Strategy = iota
	// StrategyWindowed runs fixed-size windows of items concurrently.
	StrategyWindowed
)

// String returns the lowercase strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyWindowed:
		return "windowed"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Policy is the backpressure policy of one operation.
type Policy struct {
	Operation Operation
	MaxItems  int
	Strategy  Strategy
	// Window is the number of items run concurrently. Ignored (treated as 1)
	// for sequential policies.
	Window int
}

// Policy errors.
var (
	ErrInvalidPolicy    = errors.New("invalid batch policy")
	ErrUnknownOperation = errors.New("unknown bulk operation")
)

//nolint:gochecknoglobals // Static policy table.
var defaultPolicies = map[Operation]Policy{
	OpPayments:           {Operation: OpPayments, MaxItems: 20, Strategy: StrategyWindowed, Window: 3},
	OpCancellations:      {Operation: OpCancellations, MaxItems: 15, Strategy: StrategySequential, Window: 1},
	OpSyncs:              {Operation: OpSyncs, MaxItems: 25, Strategy: StrategyWindowed, Window: 4},
	OpProducts:           {Operation: OpProducts, MaxItems: 15, Strategy: StrategyWindowed, Window: 3},
	OpProductUpdates:     {Operation: OpProductUpdates, MaxItems: 20, Strategy: StrategySequential, Window: 1},
	OpAnalytics:          {Operation: OpAnalytics, MaxItems: 12, Strategy: StrategyWindowed, Window: 4},
	OpWithdrawals:        {Operation: OpWithdrawals, MaxItems: 10, Strategy: StrategySequential, Window: 1},
	OpBalanceChecks:      {Operation: OpBalanceChecks, MaxItems: 15, Strategy: StrategyWindowed, Window: 3},
	OpTransactionQueries: {Operation: OpTransactionQueries, MaxItems: 8, Strategy: StrategyWindowed, Window: 4},
}

// DefaultPolicy returns the built-in policy for op.
func DefaultPolicy(op Operation) (Policy, error) {
	p, ok := defaultPolicies[op]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	return p, nil
}

// DefaultPolicies returns every built-in policy sorted by operation name.
func DefaultPolicies() []Policy {
	policies := make([]Policy, 0, len(defaultPolicies))
	for _, p := range defaultPolicies {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Operation < policies[j].Operation
	})
	return policies
}

// Validate checks the policy's own fields.
func (p Policy) Validate() error {
	if p.Operation == "" {
		return fmt.Errorf("%w: operation name is empty", ErrInvalidPolicy)
	}
	if p.MaxItems < 1 || p.MaxItems > MaxBatchSize {
		return fmt.Errorf("%w: %s max items must be between 1 and %d, got %d",
			ErrInvalidPolicy, p.Operation, MaxBatchSize, p.MaxItems)
	}
	if p.Strategy == StrategyWindowed && p.Window < 1 {
		return fmt.Errorf("%w: %s window must be at least 1, got %d", ErrInvalidPolicy, p.Operation, p.Window)
	}
	if p.Strategy != StrategySequential && p.Strategy != StrategyWindowed {
		return fmt.Errorf("%w: %s has unknown strategy %s", ErrInvalidPolicy, p.Operation, p.Strategy)
	}
	return nil
}

// WindowSize returns the effective concurrency window.
func (p Policy) WindowSize() int {
	if p.Strategy == StrategySequential || p.Window < 1 {
		return 1
	}
	return p.Window
}

// Check is the batch size guard. It fails for an empty batch or one larger
// than MaxItems.
func (p Policy) Check(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: %s received no items", ErrEmptyBatch, p.Operation)
	}
	if n > p.MaxItems {
		return fmt.Errorf("%w: %s accepts at most %d items, got %d", ErrBatchTooLarge, p.Operation, p.MaxItems, n)
	}
	return nil
}

// WithOverrides returns a copy of p with non-zero maxItems and window applied.
// A sequential policy stays sequential: its items must not race.
func (p Policy) WithOverrides(maxItems, window int) (Policy, error) {
	out := p
	if maxItems != 0 {
		out.MaxItems = maxItems
	}
	if window != 0 {
		if p.Strategy == StrategySequential && window != 1 {
			return Policy{}, fmt.Errorf("%w: %s is sequential, window cannot be %d", ErrInvalidPolicy, p.Operation, window)
		}
		out.Window = window
	}
	if err := out.Validate(); err != nil {
		return Policy{}, err
	}
	return out, nil
}
