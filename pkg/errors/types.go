package errors

import (
	"fmt"
)

// Validation failures for a single path mapping entry. They're always wrapped
// in an EntryError that identifies the offending entry and field.
var (
	ErrInvalidKind      = New("type must be either \"copy\" or \"link\"")
	ErrInvalidTarget    = New("target must be a relative path starting with \".\"")
	ErrPathEscape       = New("target resolves outside of the output directory")
	ErrInvalidSource    = New("invalid source path")
	ErrInvalidOverride  = New("override must be a boolean")
	ErrInvalidEntry     = New("malformed entry")
	ErrInvalidRequires  = New("requires must be a valid version constraint")
	ErrIncompatibleSpec = New("path mapping requires a different version of rdmstage")
)

// ErrLinkToRoot is returned for links that target the output directory
// itself. It matches ErrInvalidTarget.
var ErrLinkToRoot error = targetError("a link cannot replace the output directory")

type targetError string

func (err targetError) Error() string {
	return string(err)
}

func (err targetError) Is(target error) bool {
	return target == ErrInvalidTarget
}

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// parseErrTemplate is used when a mapping document isn't well-formed YAML.
// The yaml library loses the position of the error in some cases, so we can
// only pass its message on.
const parseErrTemplate = "The path mapping %q could not be parsed.\n" +
	"Please review the file. For reference, here is the error from the parser:\n" +
	"%s"

// ParseError is returned when a mapping document exists but is not
// well-formed.
type ParseError struct {
	Path string
	Err  error
}

func (err ParseError) Error() string {
	if err.Path == "" {
		return fmt.Sprintf("parse: %s", err.Err)
	}
	return fmt.Sprintf("parse %q: %s", err.Path, err.Err)
}

func (err ParseError) Unwrap() error {
	return err.Err
}

func (err ParseError) FriendlyMessage() string {
	return fmt.Sprintf(parseErrTemplate, err.Path, err.Err)
}

// EntryError identifies the field of a mapping document that failed
// validation. Index is the position of the entry in the `paths` list, or -1
// for top-level fields.
type EntryError struct {
	Index int
	Field string
	Value string
	Err   error
}

func (err EntryError) Error() string {
	field := err.Field
	switch {
	case err.Index >= 0 && err.Field == "":
		field = fmt.Sprintf("paths[%d]", err.Index)
	case err.Index >= 0:
		field = fmt.Sprintf("paths[%d].%s", err.Index, err.Field)
	}
	if err.Value == "" {
		return fmt.Sprintf("%s: %s", field, err.Err)
	}
	return fmt.Sprintf("%s: %s (got %q)", field, err.Err, err.Value)
}

func (err EntryError) Unwrap() error {
	return err.Err
}

// SourceNotFound is returned by the stager when the remote source of an
// operation doesn't exist. Index is the position of the entry in the
// `paths` list, or -1 for the implicit default copy.
type SourceNotFound struct {
	Index  int
	Source string
}

func (err SourceNotFound) Error() string {
	if err.Index < 0 {
		return fmt.Sprintf("default mapping: source %q does not exist", err.Source)
	}
	return fmt.Sprintf("paths[%d].source: %q does not exist", err.Index, err.Source)
}
