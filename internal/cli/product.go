package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/bulk"
	"github.com/openlyhq/openly/internal/config"
	"github.com/openlyhq/openly/internal/engine/batch"
)

// NewProductCreateCmd creates the product create command.
func NewProductCreateCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create products in bulk",
		Long: `Creates one product, with its payment link, per entry of a YAML list. Up to
15 products are accepted per batch and they are created three at a time.`,
		Example: `  # products.yaml:
  # - name: Coffee
  #   price: 4.5
  openly product create --file products.yaml --failed-out retry.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.file == "" {
				return errNoItems
			}
			inputs, err := loadItems[api.ProductInput](cmd, flags.file)
			if err != nil {
				return err
			}
			return executeBulk(cmd, bulkSpec[api.ProductInput, *api.Product]{
				command:   "product create",
				label:     "products",
				params:    flags.params(),
				failedOut: flags.failedOut,
				describe: func(r batch.ItemResult[api.ProductInput, *api.Product]) (string, string) {
					if r.Value == nil {
						return r.Input.Name, ""
					}
					return r.Input.Name, r.Value.ID + " " + r.Value.PaymentLink
				},
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.ProductReport, error) {
				return svc.CreateProducts(ctx, inputs)
			})
		},
	}

	flags.register(cmd, "products")
	return cmd
}

// NewProductUpdateCmd creates the product update command.
func NewProductUpdateCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update products in order",
		Long: `Applies partial updates to products one at a time, in file order. Each
entry names the product id and only the fields to change. Up to 20 updates are
accepted per batch.`,
		Example: `  # updates.yaml:
  # - id: prod_1
  #   price: 5
  # - id: prod_2
  #   active: false
  openly product update --file updates.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.file == "" {
				return errNoItems
			}
			updates, err := loadItems[api.ProductUpdate](cmd, flags.file)
			if err != nil {
				return err
			}
			return executeBulk(cmd, bulkSpec[api.ProductUpdate, *api.Product]{
				command:   "product update",
				label:     "product updates",
				params:    flags.params(),
				failedOut: flags.failedOut,
				describe: func(r batch.ItemResult[api.ProductUpdate, *api.Product]) (string, string) {
					if r.Value == nil {
						return r.Input.ID, ""
					}
					return r.Input.ID, r.Value.Name
				},
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.ProductUpdateReport, error) {
				return svc.UpdateProducts(ctx, updates)
			})
		},
	}

	flags.register(cmd, "product updates")
	return cmd
}

// NewProductAmountsCmd creates the product amounts command.
func NewProductAmountsCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "amounts [product-id...]",
		Short: "Fetch payment amounts for several products",
		Long: `Fetches the recorded payment amounts for each product. Up to 12 products
are accepted per batch and they are fetched four at a time. The total is the
sum of every product's payments.`,
		Example: `  openly product amounts prod_1 prod_2 prod_3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []string
			switch {
			case flags.file != "" && len(args) > 0:
				return fmt.Errorf("pass either --file or product ids, not both")
			case flags.file != "":
				var err error
				if ids, err = loadItems[string](cmd, flags.file); err != nil {
					return err
				}
			case len(args) > 0:
				ids = args
			default:
				return errNoItems
			}
			return executeBulk(cmd, bulkSpec[string, *api.PaymentAmounts]{
				command:   "product amounts",
				label:     "products",
				params:    flags.params(),
				failedOut: flags.failedOut,
				describe: func(r batch.ItemResult[string, *api.PaymentAmounts]) (string, string) {
					if r.Value == nil {
						return r.Input, ""
					}
					return r.Input, fmt.Sprintf("%d payments", r.Value.Count)
				},
			}, func(ctx context.Context, svc *bulk.Service) (*bulk.AnalyticsReport, error) {
				return svc.ProductAnalytics(ctx, ids)
			})
		},
	}

	flags.register(cmd, "product ids")
	return cmd
}

// NewProductStatsCmd creates the product stats command.
func NewProductStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show merchant-wide product statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			stats, err := client.ProductStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching product stats: %w", err)
			}

			cfg := config.GetGlobalConfig()
			out := cmd.OutOrStdout()
			if cfg.Output.DefaultFormat == formatJSON {
				return renderJSON(out, stats)
			}

			const padding = 2
			tw := tabwriter.NewWriter(out, 0, 0, padding, ' ', 0)
			fmt.Fprintf(tw, "Products:\t%d\n", stats.TotalProducts)
			fmt.Fprintf(tw, "Active:\t%d\n", stats.ActiveProducts)
			fmt.Fprintf(tw, "Payments:\t%d\n", stats.TotalPayments)
			fmt.Fprintf(tw, "Revenue:\t%s\n", formatAmount(stats.TotalRevenue, cfg.Output.Precision))
			return tw.Flush()
		},
	}
}
