package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/engine/batch"
	"github.com/openlyhq/openly/internal/logging"
)

// Wallet item validation errors.
var (
	ErrMissingAddress = errors.New("address is required")
	ErrMissingAsset   = errors.New("asset is required")
	ErrMissingChain   = errors.New("chain is required")
)

type (
	// WithdrawalReport is the report of a withdrawal batch.
	WithdrawalReport = batch.Report[api.WithdrawalRequest, *api.Withdrawal]
	// BalanceReport is the report of a balance check batch.
	BalanceReport = batch.Report[api.BalanceQuery, *api.Balance]
	// PayoutReport is the report of a payout transaction query batch.
	PayoutReport = batch.Report[api.PayoutTransactionQuery, *api.PayoutTransactionPage]
)

func validateWithdrawal(req api.WithdrawalRequest) error {
	switch {
	case req.Address == "":
		return ErrMissingAddress
	case req.Asset == "":
		return ErrMissingAsset
	case req.Chain == "":
		return ErrMissingChain
	case req.Amount <= 0:
		return fmt.Errorf("%w: got %g", ErrNonPositiveAmount, req.Amount)
	}
	return nil
}

func withdrawnAmount(in api.WithdrawalRequest, _ *api.Withdrawal) float64 {
	return in.Amount
}

// Withdraw submits payouts one at a time, in input order. Each request
// carries its own idempotency key.
func (s *Service) Withdraw(ctx context.Context, reqs []api.WithdrawalRequest) (*WithdrawalReport, error) {
	return run(ctx, s, batch.OpWithdrawals, reqs,
		func(ctx context.Context, req api.WithdrawalRequest) (*api.Withdrawal, error) {
			if err := validateWithdrawal(req); err != nil {
				return nil, err
			}
			key := s.newKey()
			log := logging.FromContext(ctx)
			log.Debug().Ctx(ctx).
				Str("component", "bulk").
				Str("address", req.Address).
				Str("idempotency_key", key).
				Msg("submitting withdrawal")
			return s.client.Withdraw(ctx, req, key)
		},
		withdrawnAmount,
	)
}

// WithdrawAtomic submits every payout in one batch call under the
// withdrawals size limit. The backend accepts or rejects the list as a
// whole, so every result shares the outcome. A locally invalid item fails
// the batch before the call is made.
func (s *Service) WithdrawAtomic(ctx context.Context, reqs []api.WithdrawalRequest) (*WithdrawalReport, error) {
	op := batch.OpWithdrawals
	policy, err := s.policies(op)
	if err != nil {
		return nil, err
	}
	if err = policy.Check(len(reqs)); err != nil {
		return nil, err
	}

	start := time.Now()
	s.notifyStarted(op, len(reqs))

	results := make([]batch.ItemResult[api.WithdrawalRequest, *api.Withdrawal], len(reqs))
	if msg := firstInvalid(reqs); msg != "" {
		fillFailed(results, reqs, msg)
	} else {
		out, callErr := s.client.WithdrawBatch(ctx, reqs, s.newKey())
		if callErr != nil {
			fillFailed(results, reqs, batch.ErrorMessage(callErr))
		} else {
			for i, req := range reqs {
				results[i] = batch.ItemResult[api.WithdrawalRequest, *api.Withdrawal]{
					Index:   i,
					Input:   req,
					Success: true,
					Value:   batchedWithdrawal(out, i, req),
				}
			}
		}
	}

	progress := batch.NewProgress(op, len(reqs), 1, len(reqs))
	progress.AddProcessed(len(reqs))
	if s.observer != nil {
		s.observer.BatchProgress(progress.Snapshot())
	}

	stats := batch.Aggregate(results, withdrawnAmount)
	if s.observer != nil {
		s.observer.BatchFinished(op, stats)
	}

	log := logging.FromContext(ctx)
	log.Info().Ctx(ctx).
		Str("component", "bulk").
		Str("operation", string(op)).
		Bool("atomic", true).
		Int("successful", stats.Successful).
		Int("failed", stats.Failed).
		Msg("atomic withdrawal finished")

	return &WithdrawalReport{
		Operation: op,
		Results:   results,
		Stats:     stats,
		State:     batch.StateDone,
		Duration:  time.Since(start),
	}, nil
}

func (s *Service) notifyStarted(op batch.Operation, total int) {
	if s.observer != nil {
		s.observer.BatchStarted(op, total)
	}
}

func firstInvalid(reqs []api.WithdrawalRequest) string {
	for i, req := range reqs {
		if err := validateWithdrawal(req); err != nil {
			return fmt.Sprintf("item %d: %v", i+1, err)
		}
	}
	return ""
}

func fillFailed(results []batch.ItemResult[api.WithdrawalRequest, *api.Withdrawal], reqs []api.WithdrawalRequest, msg string) {
	for i, req := range reqs {
		results[i] = batch.ItemResult[api.WithdrawalRequest, *api.Withdrawal]{Index: i, Input: req, Message: msg}
	}
}

// batchedWithdrawal picks the backend's record for item i, or synthesizes
// one from the batch status when the backend did not itemize.
func batchedWithdrawal(out *api.BatchWithdrawal, i int, req api.WithdrawalRequest) *api.Withdrawal {
	if out != nil && i < len(out.Withdrawals) {
		w := out.Withdrawals[i]
		return &w
	}
	w := &api.Withdrawal{Address: req.Address, Amount: req.Amount, Asset: req.Asset, Chain: req.Chain}
	if out != nil {
		w.ID = out.BatchID
		w.Status = out.Status
	}
	return w
}

// CheckBalances fetches each balance. The total amount is the sum of the
// balances returned.
func (s *Service) CheckBalances(ctx context.Context, queries []api.BalanceQuery) (*BalanceReport, error) {
	return run(ctx, s, batch.OpBalanceChecks, queries,
		func(ctx context.Context, q api.BalanceQuery) (*api.Balance, error) {
			if q.Chain == "" {
				return nil, ErrMissingChain
			}
			return s.client.Balance(ctx, q)
		},
		func(_ api.BalanceQuery, out *api.Balance) float64 {
			if out == nil {
				return 0
			}
			return out.Balance
		},
	)
}

// QueryPayoutTransactions fetches one page of payout history per query. The
// total amount is the sum of the payouts on the returned pages.
func (s *Service) QueryPayoutTransactions(ctx context.Context, queries []api.PayoutTransactionQuery) (*PayoutReport, error) {
	return run(ctx, s, batch.OpTransactionQueries, queries,
		func(ctx context.Context, q api.PayoutTransactionQuery) (*api.PayoutTransactionPage, error) {
			if q.Chain == "" {
				return nil, ErrMissingChain
			}
			return s.client.PayoutTransactions(ctx, q)
		},
		func(_ api.PayoutTransactionQuery, out *api.PayoutTransactionPage) float64 {
			if out == nil {
				return 0
			}
			var sum float64
			for _, tx := range out.Transactions {
				sum += tx.Amount
			}
			return sum
		},
	)
}
