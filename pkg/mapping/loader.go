package mapping

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/rdmstage/pkg/errors"
)

// fs is used for mock tests. It will be overridden by afero.NewMemMapFs()
// in the tests.
var fs = afero.NewOsFs()

// binderDirs are the directories that may contain the mapping document, in
// priority order.
var binderDirs = []string{".binder", "binder"}

var documentNames = []string{"paths.yaml", "paths.yml"}

// Candidates returns the locations of the mapping document for a project
// rooted at `root`, in priority order.
func Candidates(root string) []string {
	var candidates []string
	for _, dir := range binderDirs {
		for _, name := range documentNames {
			candidates = append(candidates, filepath.Join(root, dir, name))
		}
	}
	return candidates
}

// Load parses the first candidate that exists. Existence takes precedence
// over validity: if the first existing candidate is malformed, Load fails
// rather than trying the next one. If none of the candidates exist, the
// built-in default is returned.
func Load(candidates []string) (Spec, error) {
	for _, path := range candidates {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return Spec{}, errors.WithContext(err, "stat")
		}

		if !exists {
			continue
		}

		log.WithField("path", path).Debug("Found path mapping")
		return Parse(path)
	}

	log.Debug("No path mapping found. Using the default mapping")
	return Default(), nil
}

// Parse reads and validates the mapping document at `path`.
func Parse(path string) (Spec, error) {
	yamlBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, afero.ErrFileNotFound) {
			return Spec{}, errors.FileNotFound{Path: path}
		}
		return Spec{}, errors.WithContext(err, "read file")
	}

	spec, err := Decode(yamlBytes)
	if err != nil {
		if parseErr, ok := err.(errors.ParseError); ok {
			parseErr.Path = path
			return Spec{}, parseErr
		}
		return Spec{}, errors.WithContext(err, path)
	}

	spec.path = path
	return spec, nil
}

// Decode parses and validates a mapping document.
func Decode(yamlBytes []byte) (Spec, error) {
	var raw interface{}
	if err := yaml.Unmarshal(yamlBytes, &raw); err != nil {
		return Spec{}, errors.ParseError{Err: err}
	}
	return Validate(raw)
}
