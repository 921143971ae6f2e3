package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the sqlzen version, build metadata and supported drivers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "sqlzen v%s\n", version)
			_, _ = fmt.Fprintf(w, "commit %s, built %s, %s %s/%s\n", GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			_, _ = fmt.Fprintf(w, "drivers: %s\n", strings.Join(driverNames(), ", "))
			return nil
		},
	}
}
