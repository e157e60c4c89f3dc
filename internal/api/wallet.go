package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	pathWithdrawSingle     = "/protected/wallet/withdraw/single"
	pathWithdrawBatch      = "/protected/wallet/withdraw/batch"
	pathWalletBalance      = "/protected/wallet/balance"
	pathPayoutTransactions = "/protected/wallet/payouttransactions"
)

// ErrMissingChain is returned for chain-scoped calls without a chain.
var ErrMissingChain = errors.New("chain is required")

// WithdrawalRequest pays out stablecoin to an on-chain address.
type WithdrawalRequest struct {
	Address string  `json:"address" yaml:"address"`
	Amount  float64 `json:"amount" yaml:"amount"`
	Asset   string  `json:"asset" yaml:"asset"`
	Chain   string  `json:"chain" yaml:"chain"`
	Note    string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Withdrawal is a submitted payout.
type Withdrawal struct {
	ID      string  `json:"id"`
	Status  string  `json:"status"`
	TxHash  string  `json:"txHash,omitempty"`
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Asset   string  `json:"asset"`
	Chain   string  `json:"chain"`
}

// BatchWithdrawal is the result of one all-or-nothing batch payout.
type BatchWithdrawal struct {
	BatchID     string       `json:"batchId"`
	Status      string       `json:"status"`
	Withdrawals []Withdrawal `json:"withdrawals"`
}

type withdrawBatchBody struct {
	Withdrawals []WithdrawalRequest `json:"withdrawals"`
}

// BalanceQuery selects a wallet balance.
type BalanceQuery struct {
	Chain   string `json:"chain" yaml:"chain"`
	Asset   string `json:"asset,omitempty" yaml:"asset,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// Balance is one asset balance on one chain.
type Balance struct {
	Chain   string  `json:"chain"`
	Asset   string  `json:"asset"`
	Address string  `json:"address,omitempty"`
	Balance float64 `json:"balance"`
}

// PayoutTransactionQuery selects a page of payout history on a chain.
type PayoutTransactionQuery struct {
	Chain  string `json:"chain" yaml:"chain"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	Page   int    `json:"page,omitempty" yaml:"page,omitempty"`
	Limit  int    `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// PayoutTransaction is one on-chain payout.
type PayoutTransaction struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	Address   string    `json:"address"`
	Amount    float64   `json:"amount"`
	Asset     string    `json:"asset"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// PayoutTransactionPage is a page of payout history.
type PayoutTransactionPage struct {
	Chain        string              `json:"chain"`
	Transactions []PayoutTransaction `json:"transactions"`
	Total        int                 `json:"total"`
}

// Withdraw calls POST /protected/wallet/withdraw/single. A non-empty
// idempotency key lets the backend drop a duplicate submission.
func (c *Client) Withdraw(ctx context.Context, req WithdrawalRequest, idempotencyKey string) (*Withdrawal, error) {
	var out Withdrawal
	err := c.do(ctx, http.MethodPost, pathWithdrawSingle, requestOptions{
		body:           req,
		idempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// WithdrawBatch calls POST /protected/wallet/withdraw/batch. The backend
// accepts or rejects the whole list.
func (c *Client) WithdrawBatch(ctx context.Context, reqs []WithdrawalRequest, idempotencyKey string) (*BatchWithdrawal, error) {
	var out BatchWithdrawal
	err := c.do(ctx, http.MethodPost, pathWithdrawBatch, requestOptions{
		body:           withdrawBatchBody{Withdrawals: reqs},
		idempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance calls GET /protected/wallet/balance.
func (c *Client) Balance(ctx context.Context, q BalanceQuery) (*Balance, error) {
	if q.Chain == "" {
		return nil, ErrMissingChain
	}
	query := url.Values{"chain": {q.Chain}}
	if q.Asset != "" {
		query.Set("asset", q.Asset)
	}
	if q.Address != "" {
		query.Set("address", q.Address)
	}

	var out Balance
	if err := c.get(ctx, pathWalletBalance, query, &out); err != nil {
		return nil, err
	}
	if out.Chain == "" {
		out.Chain = q.Chain
	}
	return &out, nil
}

// PayoutTransactions calls GET /protected/wallet/payouttransactions/{chain}.
func (c *Client) PayoutTransactions(ctx context.Context, q PayoutTransactionQuery) (*PayoutTransactionPage, error) {
	if q.Chain == "" {
		return nil, ErrMissingChain
	}
	query := url.Values{}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var out PayoutTransactionPage
	if err := c.get(ctx, pathPayoutTransactions+"/"+url.PathEscape(q.Chain), query, &out); err != nil {
		return nil, err
	}
	if out.Chain == "" {
		out.Chain = q.Chain
	}
	return &out, nil
}
