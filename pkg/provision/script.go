// Package provision renders a staging plan as a shell script, so that the
// same operations can be replayed inside the environment where the remote
// storage is mounted.
package provision

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alessio/shellescape"
	"github.com/spf13/afero"

	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/mapping"
	"github.com/sidkik/rdmstage/pkg/resolve"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// ScriptName is the conventional name of the rendered script.
const ScriptName = "provision.sh"

// Render writes a bash script that performs `ops`. Targets are written
// relative to the output root, so the script must be run from inside it.
// The remote sources are checked so that directories and files can be
// copied differently.
func Render(w io.Writer, ops []resolve.Operation, ctx resolve.Context) error {
	remote := afero.NewReadOnlyFs(afero.NewBasePathFs(fs, ctx.MountDir))

	fmt.Fprintln(w, "#!/bin/bash")
	fmt.Fprintln(w, "set -xe")
	for _, op := range ops {
		fi, err := remote.Stat(op.Source)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return errors.SourceNotFound{Index: op.Index, Source: op.Source}
			}
			return errors.WithContext(err, "stat source")
		}

		target, err := relativeTarget(op.Target, ctx)
		if err != nil {
			return err
		}
		source := ctx.MountPath(op.Source)

		fmt.Fprintln(w)
		fmt.Fprintf(w, "# %s %s -> %s\n", op.Kind, op.Source, target)
		switch op.Kind {
		case mapping.Copy:
			renderCopy(w, source, target, fi.IsDir())
		case mapping.Link:
			renderLink(w, source, target)
		default:
			return errors.EntryError{Index: op.Index, Field: "type",
				Value: string(op.Kind), Err: errors.ErrInvalidKind}
		}
	}
	return nil
}

// WriteScript renders the script to `path` and makes it executable.
func WriteScript(path string, ops []resolve.Operation, ctx resolve.Context) error {
	var script bytes.Buffer
	if err := Render(&script, ops, ctx); err != nil {
		return errors.WithContext(err, "render")
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithContext(err, "make parent")
	}

	if err := afero.WriteFile(fs, path, script.Bytes(), 0755); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

func renderCopy(w io.Writer, source, target string, isDir bool) {
	isRoot := target == "."
	if !isRoot {
		fmt.Fprintf(w, "rm -rf %s\n", quote(target))
	}

	switch {
	case isDir:
		if !isRoot {
			fmt.Fprintf(w, "mkdir -p %s\n", quote(target))
		}
		// Copying `src/.` rather than `src/*` includes dotfiles.
		fmt.Fprintf(w, "cp -fr %s %s\n", quote(source+"/."), quote(target))
	default:
		if parent := filepath.Dir(target); parent != "." {
			fmt.Fprintf(w, "mkdir -p %s\n", quote(parent))
		}
		fmt.Fprintf(w, "cp -f %s %s\n", quote(source), quote(target))
	}
}

func renderLink(w io.Writer, source, target string) {
	fmt.Fprintf(w, "rm -rf %s\n", quote(target))
	if parent := filepath.Dir(target); parent != "." {
		fmt.Fprintf(w, "mkdir -p %s\n", quote(parent))
	}
	fmt.Fprintf(w, "ln -s %s %s\n", quote(source), quote(target))
}

// relativeTarget returns the target relative to the output root, in the
// `./path` form used by mapping documents.
func relativeTarget(target string, ctx resolve.Context) (string, error) {
	relativePath, err := filepath.Rel(ctx.OutputRoot, target)
	if err != nil || mapping.EscapesRoot(relativePath) {
		return "", errors.ErrPathEscape
	}

	if relativePath == "." {
		return ".", nil
	}
	return "./" + relativePath, nil
}

func quote(s string) string {
	return shellescape.Quote(s)
}
