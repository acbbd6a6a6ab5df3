package mapping

import (
	"github.com/ghodss/yaml"

	"github.com/sidkik/rdmstage/pkg/errors"
)

// DefaultStorageToken refers to the root of the project's default storage.
// It's only recognized as the leading segment of a source path.
const DefaultStorageToken = "$default_storage_path"

// Kind is the filesystem operation requested by an Entry.
type Kind string

const (
	// Copy recursively copies the source into the target.
	Copy Kind = "copy"

	// Link creates a symbolic link at the target that points to the source.
	Link Kind = "link"
)

// Entry is a single requested filesystem operation.
type Entry struct {
	Kind Kind

	// Source is a path in the remote storage namespace. It may start with
	// DefaultStorageToken.
	Source string

	// Target is relative to the output root, and always starts with ".".
	Target string
}

// Spec is a validated path mapping. The entries are in file order, which is
// also the order in which they're applied.
type Spec struct {
	// Override disables the implicit copy of the entire default storage.
	Override bool

	// Requires is an optional version constraint on rdmstage itself.
	Requires string

	Entries []Entry

	// Only populated by the loader. Never set from the document.
	path    string
	builtin bool
}

// GetPath returns the filepath that the mapping was parsed from. It's empty
// for the built-in default.
func (s Spec) GetPath() string {
	return s.path
}

// IsDefault returns whether the mapping is the built-in default that's used when
// a project doesn't contain a mapping document.
func (s Spec) IsDefault() bool {
	return s.builtin
}

// Default returns the mapping used when no document is found: a copy of the
// entire default storage into the output root.
func Default() Spec {
	return Spec{
		Entries: []Entry{
			{Kind: Copy, Source: DefaultStorageToken, Target: "."},
		},
		builtin: true,
	}
}

// document is the YAML representation of a Spec.
type document struct {
	Requires string          `json:"requires,omitempty"`
	Override bool            `json:"override,omitempty"`
	Paths    []entryDocument `json:"paths"`
}

type entryDocument struct {
	Type   Kind   `json:"type"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Marshal converts the mapping back into a mapping document.
func (s Spec) Marshal() ([]byte, error) {
	doc := document{
		Requires: s.Requires,
		Override: s.Override,
		Paths:    []entryDocument{},
	}
	for _, entry := range s.Entries {
		doc.Paths = append(doc.Paths, entryDocument{
			Type:   entry.Kind,
			Source: entry.Source,
			Target: entry.Target,
		})
	}

	yamlBytes, err := yaml.Marshal(doc)
	if err != nil {
		return nil, errors.WithContext(err, "marshal")
	}
	return yamlBytes, nil
}
