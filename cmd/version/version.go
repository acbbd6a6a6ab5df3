package version

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/rdmstage/pkg/version"
)

// Mocked for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of rdmstage",
		Long: "Print the version of rdmstage. Path mappings can require a " +
			"minimum version\nwith the `requires` field.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(stdout, "rdmstage version: %s\n", version.Version)
		},
	}
}
