package hash

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/rdmstage/cmd/util"
	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/hash"
)

// Mocked for unit testing.
var (
	stdout  io.Writer = os.Stdout
	hashDir           = hash.Dir
)

// New creates a new `hash` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <dir>",
		Short: "Print the content hash of a directory",
		Long: `Print a sha256 hash of the paths and file contents under a directory.

The hash only changes when a file is added, removed, renamed or modified, so
it can be used to tell whether a binder directory needs to be rebuilt.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args[0]); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(dir string) error {
	sum, err := hashDir(dir)
	if err != nil {
		return errors.WithContext(err, "hash")
	}
	fmt.Fprintln(stdout, sum)
	return nil
}
