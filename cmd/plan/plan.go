package plan

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sidkik/rdmstage/cmd/util"
	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/mapping"
	"github.com/sidkik/rdmstage/pkg/provision"
	"github.com/sidkik/rdmstage/pkg/resolve"
)

// Mocked for unit testing.
var (
	stdout      io.Writer = os.Stdout
	loadSpec              = mapping.Load
	render                = provision.Render
	writeScript           = provision.WriteScript
)

// New creates a new `plan` command.
func New() *cobra.Command {
	var opts util.StageOptions
	var scriptPath string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the operations that `stage` would perform",
		Long: `Resolve the path mapping against the output directory and the storage
mount, and print the resulting operations without performing them.

With --script, the operations are written as a bash script instead. Use
"--script -" to print the script.`,
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(opts, scriptPath); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	opts.AddFlags(cmd, true)
	cmd.Flags().StringVar(&scriptPath, "script", "",
		"Write the plan as a bash script to this path, such as "+
			provision.ScriptName+".")
	return cmd
}

func run(opts util.StageOptions, scriptPath string) error {
	ctx, err := opts.Context()
	if err != nil {
		return errors.WithContext(err, "get staging context")
	}

	candidates, err := opts.Candidates()
	if err != nil {
		return err
	}

	spec, err := loadSpec(candidates)
	if err != nil {
		return errors.WithContext(err, "load path mapping")
	}

	ops, err := resolve.Resolve(spec, ctx)
	if err != nil {
		return errors.WithContext(err, "resolve")
	}

	switch scriptPath {
	case "":
		return printPlan(stdout, ops, ctx)
	case "-":
		return render(stdout, ops, ctx)
	default:
		if err := writeScript(scriptPath, ops, ctx); err != nil {
			return errors.WithContext(err, "write script")
		}
		fmt.Fprintf(stdout, "Wrote provision script to %s\n", scriptPath)
		return nil
	}
}

func printPlan(out io.Writer, ops []resolve.Operation, ctx resolve.Context) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTYPE\tSOURCE\tTARGET\t")
	for _, op := range ops {
		index := fmt.Sprintf("%d", op.Index)
		if op.Implicit() {
			index = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			index, op.Kind, ctx.MountPath(op.Source), op.Target)
	}
	return w.Flush()
}
