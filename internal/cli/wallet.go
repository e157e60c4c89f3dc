package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/bulk"
	"github.com/openlyhq/openly/internal/config"
	"github.com/openlyhq/openly/internal/engine/batch"
)

// errWithdrawalDeclined is returned when the confirmation prompt is declined.
var errWithdrawalDeclined = errors.New("withdrawal not confirmed (pass --yes to skip the prompt)")

// NewWalletWithdrawCmd creates the wallet withdraw command.
func NewWalletWithdrawCmd() *cobra.Command {
	var (
		flags  batchFlags
		atomic bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Send stablecoin withdrawals",
		Long: `Sends withdrawals from the merchant wallet. Up to 10 withdrawals are accepted
per batch. By default they are sent one at a time, in file order, each with its
own idempotency key. With --atomic the whole list is submitted as one batch that
either succeeds or fails as a unit.

Withdrawals move funds, so the command asks for confirmation on a terminal and
refuses to run non-interactively without --yes.`,
		Example: `  # payouts.yaml:
  # - address: "0xabc..."
  #   amount: 25
  #   asset: USDC
  #   chain: base
  openly wallet withdraw --file payouts.yaml
  openly wallet withdraw --file payouts.yaml --atomic --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.file == "" {
				return errNoItems
			}
			reqs, err := loadItems[api.WithdrawalRequest](cmd, flags.file)
			if err != nil {
				return err
			}

			policy, err := config.GetGlobalConfig().PolicyFor(batch.OpWithdrawals)
			if err != nil {
				return err
			}
			if err = policy.Check(len(reqs)); err != nil {
				return fmt.Errorf("wallet withdraw: %w", err)
			}

			if !yes {
				var sum float64
				for _, r := range reqs {
					sum += r.Amount
				}
				precision := config.GetGlobalConfig().Output.Precision
				in := cmd.InOrStdin()
				res := ConfirmWithdrawal(cmd.ErrOrStderr(), in, isReaderTerminal(in),
					len(reqs), formatAmount(sum, precision), atomic)
				if !res.Accepted {
					return errWithdrawalDeclined
				}
			}

			params := flags.params()
			params["atomic"] = strconv.FormatBool(atomic)
			return executeBulk(cmd, bulkSpec[api.WithdrawalRequest, *api.Withdrawal]{
				command:   "wallet withdraw",
				label:     "withdrawals",
				params:    params,
				failedOut: flags.failedOut,
				describe: func(r batch.ItemResult[api.WithdrawalRequest, *api.Withdrawal]) (string, string) {
					item := r.Input.Address
					if r.Value == nil {
						return item, ""
					}
					detail := r.Value.Status
					if r.Value.TxHash != "" {
						detail += " " + r.Value.TxHash
					}
					return item, detail
				},
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.WithdrawalReport, error) {
				if atomic {
					return svc.WithdrawAtomic(ctx, reqs)
				}
				return svc.Withdraw(ctx, reqs)
			})
		},
	}

	flags.register(cmd, "withdrawal requests")
	cmd.Flags().BoolVar(&atomic, "atomic", false, "submit all withdrawals as one all-or-nothing batch")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// NewWalletBalanceCmd creates the wallet balance command.
func NewWalletBalanceCmd() *cobra.Command {
	var (
		flags   batchFlags
		chains  []string
		asset   string
		address string
	)

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Check wallet balances across chains",
		Long: `Reads the wallet balance for each chain (and optional asset and address).
Up to 15 checks are accepted per batch and they run three at a time.`,
		Example: `  openly wallet balance --chain base --chain polygon --asset USDC
  openly wallet balance --file balances.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var queries []api.BalanceQuery
			switch {
			case flags.file != "" && len(chains) > 0:
				return fmt.Errorf("pass either --file or --chain, not both")
			case flags.file != "":
				var err error
				if queries, err = loadItems[api.BalanceQuery](cmd, flags.file); err != nil {
					return err
				}
			case len(chains) > 0:
				for _, chain := range chains {
					queries = append(queries, api.BalanceQuery{Chain: chain, Asset: asset, Address: address})
				}
			default:
				return errNoItems
			}
			return executeBulk(cmd, bulkSpec[api.BalanceQuery, *api.Balance]{
				command:   "wallet balance",
				label:     "balance checks",
				params:    flags.params(),
				failedOut: flags.failedOut,
				describe: func(r batch.ItemResult[api.BalanceQuery, *api.Balance]) (string, string) {
					item := r.Input.Chain
					if r.Input.Asset != "" {
						item += "/" + r.Input.Asset
					}
					if r.Value == nil {
						return item, ""
					}
					return item, fmt.Sprintf("%g %s", r.Value.Balance, r.Value.Asset)
				},
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.BalanceReport, error) {
				return svc.CheckBalances(ctx, queries)
			})
		},
	}

	flags.register(cmd, "balance queries")
	cmd.Flags().StringSliceVar(&chains, "chain", nil, "chain to check (repeatable)")
	cmd.Flags().StringVar(&asset, "asset", "", "asset symbol applied to every --chain")
	cmd.Flags().StringVar(&address, "address", "", "wallet address applied to every --chain")
	return cmd
}

// NewWalletPayoutsCmd creates the wallet payouts command.
func NewWalletPayoutsCmd() *cobra.Command {
	var (
		flags  batchFlags
		status string
		page   int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "payouts [chain...]",
		Short: "List payout transactions for several chains",
		Long: `Queries payout transactions for each chain. Up to 8 queries are accepted per
batch and they run four at a time. The total is the sum of the returned
transaction amounts.`,
		Example: `  openly wallet payouts base polygon --status completed --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var queries []api.PayoutTransactionQuery
			switch {
			case flags.file != "" && len(args) > 0:
				return fmt.Errorf("pass either --file or chains, not both")
			case flags.file != "":
				var err error
				if queries, err = loadItems[api.PayoutTransactionQuery](cmd, flags.file); err != nil {
					return err
				}
			case len(args) > 0:
				for _, chain := range args {
					queries = append(queries, api.PayoutTransactionQuery{
						Chain: chain, Status: status, Page: page, Limit: limit,
					})
				}
			default:
				return errNoItems
			}
			return executeBulk(cmd, bulkSpec[api.PayoutTransactionQuery, *api.PayoutTransactionPage]{
				command:   "wallet payouts",
				label:     "transaction queries",
				params:    flags.params(),
				failedOut: flags.failedOut,
				describe: func(r batch.ItemResult[api.PayoutTransactionQuery, *api.PayoutTransactionPage]) (string, string) {
					if r.Value == nil {
						return r.Input.Chain, ""
					}
					return r.Input.Chain, fmt.Sprintf("%d of %d transactions", len(r.Value.Transactions), r.Value.Total)
				},
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.PayoutReport, error) {
				return svc.QueryPayoutTransactions(ctx, queries)
			})
		},
	}

	flags.register(cmd, "payout transaction queries")
	cmd.Flags().StringVar(&status, "status", "", "only transactions with this status")
	cmd.Flags().IntVar(&page, "page", 0, "result page")
	cmd.Flags().IntVar(&limit, "limit", 0, "transactions per page")
	return cmd
}

// isReaderTerminal reports whether r is an interactive terminal.
func isReaderTerminal(r io.Reader) bool {
	if f, ok := r.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}
