package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/pkg/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd(ver string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("openly %s\n", ver)
			cmd.Printf("  commit:     %s\n", version.GetGitCommit())
			cmd.Printf("  built:      %s\n", version.GetBuildDate())
			cmd.Printf("  go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			cmd.Printf("  api:        %s\n", api.SupportedAPIVersions)
			return nil
		},
	}
}
