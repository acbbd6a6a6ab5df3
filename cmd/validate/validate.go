package validate

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sidkik/rdmstage/cmd/util"
	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/mapping"
	"github.com/sidkik/rdmstage/pkg/resolve"
)

// Mocked for unit testing.
var (
	stdout   io.Writer = os.Stdout
	loadSpec           = mapping.Load
)

// New creates a new `validate` command.
func New() *cobra.Command {
	var opts util.StageOptions
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the path mapping and print the entries it applies",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	opts.AddFlags(cmd, false)
	return cmd
}

func run(opts util.StageOptions) error {
	candidates, err := opts.Candidates()
	if err != nil {
		return err
	}

	spec, err := loadSpec(candidates)
	if err != nil {
		return errors.WithContext(err, "load path mapping")
	}
	return printSpec(stdout, spec)
}

func printSpec(out io.Writer, spec mapping.Spec) error {
	if spec.IsDefault() {
		fmt.Fprintln(out, "No path mapping found. Using the built-in default.")
	} else {
		fmt.Fprintf(out, "Path mapping: %s\n", spec.GetPath())
		fmt.Fprintf(out, "Override: %t\n", spec.Override)
		if spec.Requires != "" {
			fmt.Fprintf(out, "Requires: %s\n", spec.Requires)
		}
	}
	fmt.Fprintln(out)

	plan := resolve.Plan(spec)
	implicit := len(plan) - len(spec.Entries)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSOURCE\tTARGET\t")
	for i, entry := range plan {
		row := fmt.Sprintf("%s\t%s\t%s\t", entry.Kind, entry.Source, entry.Target)
		if i < implicit {
			row += "(implicit)"
		}
		fmt.Fprintln(w, row)
	}
	return w.Flush()
}
