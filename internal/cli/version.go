package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/brahmarsh1/shiksha/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version, Go runtime and platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "shiksha v%s (%s %s/%s)\n", version.Resolve(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
