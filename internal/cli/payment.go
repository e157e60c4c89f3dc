package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/bulk"
	"github.com/openlyhq/openly/internal/engine/batch"
)

// batchFlags are shared by every bulk command.
type batchFlags struct {
	file      string
	failedOut string
}

func (f *batchFlags) register(cmd *cobra.Command, what string) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "YAML list of "+what+" (\"-\" reads stdin)")
	cmd.Flags().StringVar(&f.failedOut, "failed-out", "", "write failed items to this YAML file for resubmission")
}

func (f *batchFlags) params() map[string]string {
	return map[string]string{"file": f.file, "failed_out": f.failedOut}
}

// NewPaymentCreateCmd creates the payment create command.
func NewPaymentCreateCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create payment intents in bulk",
		Long: `Creates one payment intent per entry of a YAML list. Up to 20 intents are
accepted per batch and they are created three at a time.`,
		Example: `  # intents.yaml:
  # - paymentLink: plink_coffee
  #   amount: 10
  # - paymentLink: plink_tea
  #   amount: 20
  openly payment create --file intents.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.file == "" {
				return errNoItems
			}
			reqs, err := loadItems[api.PaymentIntentRequest](cmd, flags.file)
			if err != nil {
				return err
			}
			return executeBulk(cmd, bulkSpec[api.PaymentIntentRequest, *api.PaymentIntent]{
				command:   "payment create",
				label:     "payment intents",
				params:    flags.params(),
				failedOut: flags.failedOut,
				describe:  describePaymentIntent,
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.PaymentReport, error) {
				return svc.CreatePaymentIntents(ctx, reqs)
			})
		},
	}

	flags.register(cmd, "payment intent requests")
	return cmd
}

// NewPaymentCancelCmd creates the payment cancel command.
func NewPaymentCancelCmd() *cobra.Command {
	var (
		flags  batchFlags
		reason string
	)

	cmd := &cobra.Command{
		Use:   "cancel [payment-intent-id...]",
		Short: "Cancel payment intents in order",
		Long: `Cancels payment intents one at a time, in the order given. Up to 15
intents are accepted per batch.`,
		Example: `  openly payment cancel pi_123 pi_456 --reason duplicate
  openly payment cancel --file cancellations.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := intentRefs(cmd, flags.file, args, reason)
			if err != nil {
				return err
			}
			return executeBulk(cmd, bulkSpec[api.PaymentIntentRef, *api.PaymentIntent]{
				command:   "payment cancel",
				label:     "cancellations",
				params:    flags.params(),
				failedOut: flags.failedOut,
				describe:  describeIntentRef,
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.IntentReport, error) {
				return svc.CancelPaymentIntents(ctx, refs)
			})
		},
	}

	flags.register(cmd, "payment intent references")
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason applied to intents given as arguments")
	return cmd
}

// NewPaymentSyncCmd creates the payment sync command.
func NewPaymentSyncCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "sync [payment-intent-id...]",
		Short: "Refresh payment intents from the card processor",
		Long: `Re-reads each payment intent's status from the card processor. Up to 25
intents are accepted per batch and they are synced four at a time.`,
		Example: `  openly payment sync pi_123 pi_456 pi_789`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := intentRefs(cmd, flags.file, args, "")
			if err != nil {
				return err
			}
			return executeBulk(cmd, bulkSpec[api.PaymentIntentRef, *api.PaymentIntent]{
				command:   "payment sync",
				label:     "payment syncs",
				params:    flags.params(),
				failedOut: flags.failedOut,
				describe:  describeIntentRef,
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.IntentReport, error) {
				return svc.SyncPaymentIntents(ctx, refs)
			})
		},
	}

	flags.register(cmd, "payment intent references")
	return cmd
}

// intentRefs builds references from --file or from positional ids.
func intentRefs(cmd *cobra.Command, file string, args []string, reason string) ([]api.PaymentIntentRef, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("pass either --file or payment intent ids, not both")
	case file != "":
		return loadItems[api.PaymentIntentRef](cmd, file)
	case len(args) > 0:
		refs := make([]api.PaymentIntentRef, len(args))
		for i, id := range args {
			refs[i] = api.PaymentIntentRef{PaymentIntentID: id, Reason: reason}
		}
		return refs, nil
	default:
		return nil, errNoItems
	}
}

func describePaymentIntent(r batch.ItemResult[api.PaymentIntentRequest, *api.PaymentIntent]) (string, string) {
	if r.Value == nil {
		return r.Input.PaymentLink, ""
	}
	return r.Input.PaymentLink, fmt.Sprintf("%s %s %g %s", r.Value.ID, r.Value.Status, r.Value.Amount, r.Value.Currency)
}

func describeIntentRef(r batch.ItemResult[api.PaymentIntentRef, *api.PaymentIntent]) (string, string) {
	if r.Value == nil {
		return r.Input.PaymentIntentID, ""
	}
	return r.Input.PaymentIntentID, r.Value.Status
}
