package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/rdmstage/cmd/config"
	hashCmd "github.com/sidkik/rdmstage/cmd/hash"
	"github.com/sidkik/rdmstage/cmd/plan"
	stageCmd "github.com/sidkik/rdmstage/cmd/stage"
	"github.com/sidkik/rdmstage/cmd/util"
	"github.com/sidkik/rdmstage/cmd/validate"
	"github.com/sidkik/rdmstage/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "RDMSTAGE_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:   "rdmstage",
		Short: "Stage project storage into a build environment",
		Long: `rdmstage materializes folders from the project storage into the
environment being built, as described by .binder/paths.yaml.`,
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		configCmd.New(),
		hashCmd.New(),
		plan.New(),
		stageCmd.New(),
		validate.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
