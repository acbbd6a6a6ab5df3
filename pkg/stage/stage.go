// Package stage materializes a path mapping into the local output directory.
//
// Operations are applied one at a time in the order returned by
// resolve.Resolve. Later operations may write into directories created by
// earlier ones, and replace their output at colliding targets, so nothing is
// parallelized. If an operation fails, the effects of the operations before
// it are left in place.
package stage

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/mapping"
	"github.com/sidkik/rdmstage/pkg/resolve"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Stage resolves the mapping and applies it to the output root. It's the entry
// point used by the build before the environment is finalized.
func Stage(spec mapping.Spec, ctx resolve.Context) error {
	ops, err := resolve.Resolve(spec, ctx)
	if err != nil {
		return errors.WithContext(err, "resolve")
	}
	return Apply(ops, ctx)
}

// Apply performs the operations in order, stopping at the first failure.
func Apply(ops []resolve.Operation, ctx resolve.Context) error {
	if err := fs.MkdirAll(ctx.OutputRoot, 0755); err != nil {
		return errors.WithContext(err, "make output directory")
	}

	remote := RemoteFs(ctx)
	for _, op := range ops {
		log.WithFields(log.Fields{
			"type":   op.Kind,
			"source": op.Source,
			"target": op.Target,
		}).Info("Staging path mapping")

		if err := checkTargetParents(op, ctx); err != nil {
			return err
		}

		var err error
		switch op.Kind {
		case mapping.Copy:
			err = copyOp(remote, op, ctx)
		case mapping.Link:
			err = linkOp(remote, op, ctx)
		default:
			err = errors.EntryError{Index: op.Index, Field: "type",
				Value: string(op.Kind), Err: errors.ErrInvalidKind}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoteFs returns a read view of the remote storage namespace. Paths outside
// of the mount directory don't exist in the view.
func RemoteFs(ctx resolve.Context) afero.Fs {
	return afero.NewReadOnlyFs(afero.NewBasePathFs(fs, ctx.MountDir))
}

func statSource(remote afero.Fs, op resolve.Operation) (os.FileInfo, error) {
	fi, err := remote.Stat(op.Source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.SourceNotFound{Index: op.Index, Source: op.Source}
		}
		return nil, errors.WithContext(err, "stat source")
	}
	return fi, nil
}

func copyOp(remote afero.Fs, op resolve.Operation, ctx resolve.Context) error {
	fi, err := statSource(remote, op)
	if err != nil {
		return err
	}

	target := op.Target
	if target == ctx.OutputRoot {
		// The output root can't be replaced, so copies into it are merged
		// with what's already there. A file is copied into the root rather
		// than over it.
		if !fi.IsDir() {
			target = filepath.Join(target, filepath.Base(op.Source))
			if err := removeExisting(target); err != nil {
				return err
			}
		}
	} else if err := removeExisting(target); err != nil {
		return err
	}

	if fi.IsDir() {
		err = copyDir(remote, op.Source, target)
	} else {
		err = copyFile(remote, op.Source, target)
	}
	if err != nil {
		return errors.WithContext(err, "copy")
	}
	return nil
}

func linkOp(remote afero.Fs, op resolve.Operation, ctx resolve.Context) error {
	if op.Target == ctx.OutputRoot {
		return errors.EntryError{Index: op.Index, Field: "target",
			Value: op.Target, Err: errors.ErrLinkToRoot}
	}

	if _, err := statSource(remote, op); err != nil {
		return err
	}

	linker, ok := fs.(afero.Linker)
	if !ok {
		return errors.New("filesystem does not support symbolic links")
	}

	if err := removeExisting(op.Target); err != nil {
		return err
	}

	if err := fs.MkdirAll(filepath.Dir(op.Target), 0755); err != nil {
		return errors.WithContext(err, "make parent")
	}

	if err := linker.SymlinkIfPossible(ctx.MountPath(op.Source), op.Target); err != nil {
		return errors.WithContext(err, "symlink")
	}
	return nil
}

// removeExisting removes whatever is at `path`, including dangling symlinks.
// Symlinks are removed without touching what they point to.
func removeExisting(path string) error {
	var err error
	if lstater, ok := fs.(afero.Lstater); ok {
		_, _, err = lstater.LstatIfPossible(path)
	} else {
		_, err = fs.Stat(path)
	}

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.WithContext(err, "stat target")
	}

	log.WithField("path", path).Debug("Replacing existing target")
	if err := fs.RemoveAll(path); err != nil {
		return errors.WithContext(err, "remove existing target")
	}
	return nil
}

// checkTargetParents rejects targets whose parent directories include a
// symlink. Writes through the link would land outside the output root, for
// example in the storage mount or in a directory that a staged link points
// to. The target itself may be a link, since it's replaced rather than
// written through.
func checkTargetParents(op resolve.Operation, ctx resolve.Context) error {
	if op.Target == ctx.OutputRoot {
		return nil
	}

	escapeErr := errors.EntryError{Index: op.Index, Field: "target",
		Value: op.Target, Err: errors.ErrPathEscape}
	relativeParent, err := filepath.Rel(ctx.OutputRoot, filepath.Dir(op.Target))
	if err != nil {
		return errors.WithContext(err, "normalize target")
	}
	if relativeParent == ".." || strings.HasPrefix(relativeParent, "../") {
		return escapeErr
	}
	if relativeParent == "." {
		return nil
	}

	lstater, ok := fs.(afero.Lstater)
	if !ok {
		return nil
	}

	dir := ctx.OutputRoot
	for _, part := range strings.Split(relativeParent, string(filepath.Separator)) {
		dir = filepath.Join(dir, part)
		fi, _, err := lstater.LstatIfPossible(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return errors.WithContext(err, "stat target parent")
		}

		if fi.Mode()&os.ModeSymlink != 0 {
			log.WithField("path", dir).Debug("Target parent is a symbolic link")
			return escapeErr
		}
	}
	return nil
}
