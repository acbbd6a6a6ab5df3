package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/rdmstage/pkg/errors"
)

var fs = afero.NewOsFs()

// Watch watches the given mapping document candidates. It sends an event on
// the returned channel whenever one of them is created, changed or removed.
// The returned function stops the watch.
func Watch(candidates []string) (chan struct{}, func(), error) {
	pathsToWatch, err := getPathsToWatch(candidates)
	if err != nil {
		return nil, nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errors.WithContext(err, "create watcher")
	}

	stop := func() {
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			stop()
			return nil, nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	go func() {
		for err := range watcher.Errors {
			log.WithError(err).Warn("File watcher error")
		}
	}()
	return combineUpdates(watcher.Events, candidates), stop, nil
}

// combineUpdates collapses bursts of events into a single pending signal.
// Events for files other than the candidates, such as editor swap files,
// are dropped.
func combineUpdates(updates <-chan fsnotify.Event, candidates []string) chan struct{} {
	relevant := map[string]struct{}{}
	for _, candidate := range candidates {
		relevant[filepath.Clean(candidate)] = struct{}{}
	}

	combined := make(chan struct{}, 1)
	go func() {
		defer close(combined)
		for event := range updates {
			if _, ok := relevant[filepath.Clean(event.Name)]; !ok {
				continue
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// getPathsToWatch returns the directories that contain the candidates.
// fsnotify can't watch paths that don't exist yet, so for a missing
// directory, the closest existing ancestor is watched instead.
func getPathsToWatch(candidates []string) (paths []string, err error) {
	seen := map[string]struct{}{}
	for _, candidate := range candidates {
		dir, err := closestExistingDir(filepath.Dir(candidate))
		if err != nil {
			return nil, err
		}

		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		paths = append(paths, dir)
	}
	return paths, nil
}

func closestExistingDir(dir string) (string, error) {
	for {
		fi, err := fs.Stat(dir)
		switch {
		case err == nil && fi.IsDir():
			return dir, nil
		case err == nil:
			return "", errors.NewFriendlyError("%q is not a directory", dir)
		case !os.IsNotExist(err):
			return "", errors.WithContext(err, "stat")
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.FileNotFound{Path: dir}
		}
		dir = parent
	}
}

// Debounce waits for `in` to be quiet for `quiet` before signaling on the
// returned channel, so that an editor saving a file in several steps causes
// a single update.
func Debounce(in <-chan struct{}, clock clockwork.Clock, quiet time.Duration) chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range in {
		settle:
			for {
				select {
				case _, ok := <-in:
					if !ok {
						break settle
					}
				case <-clock.After(quiet):
					break settle
				}
			}

			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out
}
