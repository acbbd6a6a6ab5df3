package mapping

import (
	"fmt"
	"path"
	"strings"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/version"
)

// Validate converts a decoded mapping document into a Spec. The document is
// the generic structure produced by the YAML decoder. Unknown top-level keys
// are ignored so that older binaries can read newer documents.
func Validate(raw interface{}) (Spec, error) {
	doc, ok := raw.(map[string]interface{})
	if !ok {
		return Spec{}, errors.ParseError{
			Err: fmt.Errorf("expected a mapping at the top level, got %s", describe(raw)),
		}
	}

	var spec Spec
	if value, ok := doc["override"]; ok && value != nil {
		override, ok := value.(bool)
		if !ok {
			return Spec{}, errors.EntryError{Index: -1, Field: "override",
				Value: valueString(value), Err: errors.ErrInvalidOverride}
		}
		spec.Override = override
	}

	if value, ok := doc["requires"]; ok && value != nil {
		requires, err := validateRequires(value, version.Version)
		if err != nil {
			return Spec{}, err
		}
		spec.Requires = requires
	}

	rawPaths, ok := doc["paths"]
	if !ok {
		return Spec{}, errors.MissingFieldError{Field: "paths"}
	}

	// An empty `paths:` key decodes to nil, which is an empty list.
	var paths []interface{}
	if rawPaths != nil {
		paths, ok = rawPaths.([]interface{})
		if !ok {
			return Spec{}, errors.EntryError{Index: -1, Field: "paths",
				Value: valueString(rawPaths), Err: errors.ErrInvalidEntry}
		}
	}

	for i, rawEntry := range paths {
		entry, err := validateEntry(i, rawEntry)
		if err != nil {
			return Spec{}, err
		}
		spec.Entries = append(spec.Entries, entry)
	}
	return spec, nil
}

func validateEntry(index int, raw interface{}) (Entry, error) {
	fields, ok := raw.(map[string]interface{})
	if !ok {
		return Entry{}, errors.EntryError{Index: index,
			Value: valueString(raw), Err: errors.ErrInvalidEntry}
	}

	kindStr, ok := fields["type"].(string)
	kind := Kind(kindStr)
	if !ok || (kind != Copy && kind != Link) {
		return Entry{}, errors.EntryError{Index: index, Field: "type",
			Value: valueString(fields["type"]), Err: errors.ErrInvalidKind}
	}

	targetStr, _ := fields["target"].(string)
	target := strings.TrimSpace(targetStr)
	if err := validateTarget(target); err != nil {
		return Entry{}, errors.EntryError{Index: index, Field: "target",
			Value: valueString(fields["target"]), Err: err}
	}
	if kind == Link && IsRoot(target) {
		return Entry{}, errors.EntryError{Index: index, Field: "target",
			Value: target, Err: errors.ErrLinkToRoot}
	}

	sourceStr, _ := fields["source"].(string)
	source := strings.TrimSpace(sourceStr)
	if !validSource(source) {
		return Entry{}, errors.EntryError{Index: index, Field: "source",
			Value: valueString(fields["source"]), Err: errors.ErrInvalidSource}
	}

	return Entry{Kind: kind, Source: source, Target: target}, nil
}

// validateTarget checks that the target is written relative to the output
// root, and that it stays within the output root once normalized. Leading
// `/`, `~` and drive letters all fail the prefix check.
func validateTarget(target string) error {
	if !strings.HasPrefix(target, ".") {
		return errors.ErrInvalidTarget
	}

	if EscapesRoot(target) {
		return errors.ErrPathEscape
	}
	return nil
}

// EscapesRoot returns whether the relative path leaves the directory it's
// relative to after lexical normalization. E.g. `./a/../../b` escapes, but
// `./a/../b` does not.
func EscapesRoot(target string) bool {
	cleaned := path.Clean(strings.ReplaceAll(target, "\\", "/"))
	return cleaned == ".." || strings.HasPrefix(cleaned, "../")
}

// IsRoot returns whether the relative path refers to the directory it's
// relative to.
func IsRoot(target string) bool {
	return path.Clean(target) == "."
}

// validSource checks that the source is non-empty, and that the storage token
// only appears as the whole first segment.
func validSource(source string) bool {
	if source == "" {
		return false
	}

	idx := strings.Index(source, DefaultStorageToken)
	if idx == -1 {
		return true
	}
	if idx != 0 {
		return false
	}

	remaining := strings.TrimPrefix(source, DefaultStorageToken)
	if remaining != "" && !strings.HasPrefix(remaining, "/") {
		return false
	}
	return !strings.Contains(remaining, DefaultStorageToken)
}

// validateRequires checks the optional version constraint against the running
// binary. The check is skipped for binaries that weren't built for release.
func validateRequires(value interface{}, running string) (string, error) {
	requires, ok := value.(string)
	if !ok {
		return "", errors.EntryError{Index: -1, Field: "requires",
			Value: valueString(value), Err: errors.ErrInvalidRequires}
	}

	constraints, err := goversion.NewConstraint(requires)
	if err != nil {
		return "", errors.EntryError{Index: -1, Field: "requires",
			Value: requires, Err: errors.ErrInvalidRequires}
	}

	if running == version.EmptyValue {
		return requires, nil
	}

	runningVersion, err := goversion.NewVersion(running)
	if err != nil {
		log.WithError(err).WithField("version", running).Debug(
			"Failed to parse own version. Skipping version constraint check")
		return requires, nil
	}

	if !constraints.Check(runningVersion) {
		return "", errors.EntryError{Index: -1, Field: "requires",
			Value: requires, Err: errors.ErrIncompatibleSpec}
	}
	return requires, nil
}

func valueString(value interface{}) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func describe(value interface{}) string {
	switch value.(type) {
	case nil:
		return "an empty document"
	case []interface{}:
		return "a list"
	default:
		return fmt.Sprintf("%q", valueString(value))
	}
}
