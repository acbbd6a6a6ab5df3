package resolve

import (
	"path/filepath"
	"strings"

	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/mapping"
)

// DefaultMountDir is where the remote storage namespace is mounted inside the
// build environment.
const DefaultMountDir = "/mnt/rdm"

// Context contains the values supplied by the caller that are needed to turn
// mapping entries into concrete paths.
type Context struct {
	// DefaultStoragePath is what mapping.DefaultStorageToken expands to. It's
	// a path in the remote storage namespace, such as `/osfstorage`.
	DefaultStoragePath string

	// OutputRoot is the absolute local directory that becomes the home
	// directory of the environment.
	OutputRoot string

	// MountDir is the local directory where the remote storage namespace is
	// mounted.
	MountDir string
}

// NewContext normalizes the given values into a Context. The storage path is
// given a leading slash and stripped of trailing slashes so that it can be
// concatenated with the remainder of a source path.
func NewContext(defaultStoragePath, outputRoot, mountDir string) (Context, error) {
	storage := strings.Trim(strings.TrimSpace(defaultStoragePath), "/")
	if storage == "" {
		return Context{}, errors.MissingFieldError{Field: "default storage path"}
	}

	if !filepath.IsAbs(outputRoot) {
		return Context{}, errors.NewFriendlyError(
			"The output directory must be an absolute path. Got %q.", outputRoot)
	}

	if mountDir == "" {
		mountDir = DefaultMountDir
	}
	if !filepath.IsAbs(mountDir) {
		return Context{}, errors.NewFriendlyError(
			"The storage mount directory must be an absolute path. Got %q.", mountDir)
	}

	return Context{
		DefaultStoragePath: "/" + storage,
		OutputRoot:         filepath.Clean(outputRoot),
		MountDir:           filepath.Clean(mountDir),
	}, nil
}

// MountPath returns the local path at which the remote path is visible.
func (ctx Context) MountPath(remote string) string {
	return filepath.Join(ctx.MountDir, remote)
}

// Operation is a mapping entry whose paths have been made concrete.
type Operation struct {
	// Index is the position of the entry in the mapping document, or -1 for
	// the implicit default copy.
	Index int

	Kind mapping.Kind

	// Source is the path in the remote storage namespace.
	Source string

	// Target is the absolute local path.
	Target string
}

// Implicit returns whether the operation is the implicit default copy rather
// than an entry from the mapping document.
func (op Operation) Implicit() bool {
	return op.Index < 0
}

// Source expands the storage token at the start of `source`. The remainder
// of the path is appended as-is, since the remote namespace has its own
// normalization rules. Any other path, including one with an unrecognized
// `$` variable, is returned verbatim.
func Source(source string, ctx Context) string {
	if !strings.HasPrefix(source, mapping.DefaultStorageToken) {
		return source
	}

	remaining := strings.TrimPrefix(source, mapping.DefaultStorageToken)
	if remaining != "" && !strings.HasPrefix(remaining, "/") {
		return source
	}
	return ctx.DefaultStoragePath + remaining
}

// Target joins the relative target to the output root. It fails if the
// result is outside of the output root.
func Target(target string, ctx Context) (string, error) {
	abs := filepath.Join(ctx.OutputRoot, strings.TrimSpace(target))
	relativePath, err := filepath.Rel(ctx.OutputRoot, abs)
	if err != nil || relativePath == ".." ||
		strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
		return "", errors.ErrPathEscape
	}
	return abs, nil
}

// implicitDefault is inserted ahead of the entries in the mapping document.
// It's synthesized here rather than parsed, so it never goes through the
// validation meant for user-authored entries.
var implicitDefault = mapping.Entry{
	Kind:   mapping.Copy,
	Source: mapping.DefaultStorageToken,
	Target: ".",
}

// needsImplicitDefault returns whether the entire default storage should be
// copied before the explicit entries are applied.
func needsImplicitDefault(spec mapping.Spec) bool {
	if spec.Override || spec.IsDefault() {
		return false
	}

	for _, entry := range spec.Entries {
		if mapping.IsRoot(entry.Target) {
			return false
		}
	}
	return true
}

// Plan returns the entries to apply, in order.
func Plan(spec mapping.Spec) []mapping.Entry {
	var entries []mapping.Entry
	if needsImplicitDefault(spec) {
		entries = append(entries, implicitDefault)
	}
	return append(entries, spec.Entries...)
}

// Resolve returns the concrete operations for the mapping, in the order they
// should be applied.
func Resolve(spec mapping.Spec, ctx Context) ([]Operation, error) {
	var ops []Operation
	if needsImplicitDefault(spec) {
		op, err := resolveEntry(-1, implicitDefault, ctx)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	for i, entry := range spec.Entries {
		op, err := resolveEntry(i, entry, ctx)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func resolveEntry(index int, entry mapping.Entry, ctx Context) (Operation, error) {
	target, err := Target(entry.Target, ctx)
	if err != nil {
		return Operation{}, errors.EntryError{Index: index, Field: "target",
			Value: entry.Target, Err: err}
	}

	return Operation{
		Index:  index,
		Kind:   entry.Kind,
		Source: Source(entry.Source, ctx),
		Target: target,
	}, nil
}
