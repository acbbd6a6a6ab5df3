package stage

import (
	"os"
	"os/signal"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/rdmstage/cmd/util"
	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/fswatch"
	"github.com/sidkik/rdmstage/pkg/hash"
	"github.com/sidkik/rdmstage/pkg/mapping"
	"github.com/sidkik/rdmstage/pkg/resolve"
	"github.com/sidkik/rdmstage/pkg/stage"
)

// quietPeriod is how long the mapping files must be unchanged before they're
// restaged.
const quietPeriod = 500 * time.Millisecond

// Mocked for unit testing.
var (
	loadSpec    = mapping.Load
	stageSpec   = stage.Stage
	watch       = fswatch.Watch
	fingerprint = hash.Files
	clock       = clockwork.NewRealClock()
)

// New creates a new `stage` command.
func New() *cobra.Command {
	var opts util.StageOptions
	var watchFlag bool
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Copy and link project storage into the output directory",
		Long: `Read the path mapping from .binder/paths.yaml (or binder/paths.yaml) and
materialize it into the output directory.

Without a path mapping, the whole default storage is copied into the output
directory. With --watch, the mapping is staged again whenever it changes.`,
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(opts, watchFlag); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	opts.AddFlags(cmd, true)
	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false,
		"Keep running, and stage again whenever the path mapping changes.")
	return cmd
}

func run(opts util.StageOptions, watchMapping bool) error {
	ctx, err := opts.Context()
	if err != nil {
		return errors.WithContext(err, "get staging context")
	}

	candidates, err := opts.Candidates()
	if err != nil {
		return err
	}

	if err := stageOnce(candidates, ctx); err != nil {
		if !watchMapping {
			return err
		}
		log.WithError(err).Error("Failed to stage path mapping")
	}

	if !watchMapping {
		return nil
	}

	updates, stop, err := watch(candidates)
	if err != nil {
		return errors.WithContext(err, "watch path mapping")
	}
	defer stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	done := make(chan struct{})
	go func() {
		<-interrupt
		close(done)
	}()

	log.Info("Watching for changes to the path mapping. Hit Ctrl-C to exit.")
	restageOnChange(fswatch.Debounce(updates, clock, quietPeriod), done,
		candidates, ctx, currentFingerprint(candidates))
	return nil
}

// restageOnChange stages the mapping after every update until `done` is
// closed or the updates stop. Failures are logged so that a broken edit can
// be fixed without restarting the watch.
//
// Updates that leave the mapping files as they were after the last staging
// are ignored. Staging may itself rewrite the mapping files, for example
// when the storage contains a binder directory and the output root is the
// project directory, and those writes must not trigger another staging.
func restageOnChange(updates <-chan struct{}, done <-chan struct{},
	candidates []string, ctx resolve.Context, lastStaged string) {
	for {
		select {
		case <-done:
			return
		case _, ok := <-updates:
			if !ok {
				return
			}

			current := currentFingerprint(candidates)
			if current != "" && current == lastStaged {
				log.Debug("Path mapping unchanged since the last staging. Ignoring update.")
				continue
			}

			log.Info("Path mapping changed. Staging again.")
			if err := stageOnce(candidates, ctx); err != nil {
				log.WithError(err).Error("Failed to stage path mapping")
			}
			lastStaged = currentFingerprint(candidates)
		}
	}
}

// currentFingerprint returns the hash of the mapping files, or the empty
// string if they couldn't be read. The empty string never matches, so an
// unreadable mapping is always restaged.
func currentFingerprint(candidates []string) string {
	sum, err := fingerprint(candidates)
	if err != nil {
		log.WithError(err).Debug("Failed to hash path mapping")
		return ""
	}
	return sum
}

func stageOnce(candidates []string, ctx resolve.Context) error {
	spec, err := loadSpec(candidates)
	if err != nil {
		return errors.WithContext(err, "load path mapping")
	}

	if spec.IsDefault() {
		log.Info("No path mapping found. Copying the default storage.")
	} else {
		log.WithField("path", spec.GetPath()).Info("Loaded path mapping")
	}

	if err := stageSpec(spec, ctx); err != nil {
		return errors.WithContext(err, "stage")
	}
	log.WithField("output", ctx.OutputRoot).Info("Staging complete")
	return nil
}
