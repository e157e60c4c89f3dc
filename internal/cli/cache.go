package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/openlyhq/openly/internal/config"
	"github.com/openlyhq/openly/internal/engine/cache"
)

// NewCacheClearCmd creates the cache clear command.
func NewCacheClearCmd() *cobra.Command {
	var expiredOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached API responses",
		Long: `Removes cached read responses (balances, product stats, payment amounts and
payout transactions). With --expired only stale or unreadable entries go.`,
		Example: `  openly cache clear
  openly cache clear --expired`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(config.GetGlobalConfig())
			if err != nil {
				return err
			}

			var removed int
			if expiredOnly {
				removed, err = store.Prune()
			} else {
				removed, err = store.Clear()
			}
			if errors.Is(err, cache.ErrDisabled) {
				cmd.Println("Cache is disabled; nothing to clear")
				return nil
			}
			if err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			cmd.Printf("Removed %d cache entries from %s\n", removed, store.Dir())
			return nil
		},
	}

	cmd.Flags().BoolVar(&expiredOnly, "expired", false, "only remove expired entries")
	return cmd
}

// NewCacheInfoCmd creates the cache info command.
func NewCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache location, TTL and usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			if !store.Enabled() {
				cmd.Println("Cache: disabled")
				return nil
			}
			stats, err := store.Stats()
			if err != nil {
				return fmt.Errorf("reading cache: %w", err)
			}

			p := message.NewPrinter(language.English)
			const padding = 2
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, padding, ' ', 0)
			fmt.Fprintf(tw, "Directory:\t%s\n", store.Dir())
			fmt.Fprintf(tw, "TTL:\t%s\n", cache.FormatDuration(store.TTL()))
			p.Fprintf(tw, "Entries:\t%d (%d expired)\n", stats.Entries, stats.Expired)
			p.Fprintf(tw, "Size:\t%d bytes\n", stats.Bytes)
			return tw.Flush()
		},
	}
}
