package config

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/resolve"
)

const (
	// UserConfigPath is the default path to the rdmstage user config.
	UserConfigPath = "~/.rdmstage.yaml"

	// InitialUserConfigVersion is the first version of the user config.
	// Config files that do not specify a version will default to this
	// version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the supported version of the user config
	// of the current rdmstage binary.
	SupportedUserConfigVersion = "v1alpha1"

	// DefaultStorage is the name of the project's default storage provider.
	DefaultStorage = "osfstorage"
)

// User contains the machine-specific defaults for staging. Each field can be
// overridden by a command line flag.
type User struct {
	Version        string `json:"version,omitempty"`
	MountDir       string `json:"mountDir,omitempty"`
	DefaultStorage string `json:"defaultStorage,omitempty"`
	OutputRoot     string `json:"outputRoot,omitempty"`
}

func (u User) getVersion() string {
	return u.Version
}

// WithDefaults fills in unset fields with the built-in defaults.
func (u User) WithDefaults() User {
	if u.MountDir == "" {
		u.MountDir = resolve.DefaultMountDir
	}
	if u.DefaultStorage == "" {
		u.DefaultStorage = DefaultStorage
	}
	return u
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser attempts to parse the User stored in the default path. It returns
// errors.FileNotFound if the config doesn't exist.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := parseConfig(path, &config, SupportedUserConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return User{}, err
		}
		return User{}, errors.WithContext(err, "parse")
	}

	// Evaluate relative paths relative to the config path.
	for _, field := range []*string{&config.MountDir, &config.OutputRoot} {
		if *field == "" {
			continue
		}

		expanded, err := homedirExpand(*field)
		if err != nil {
			return User{}, errors.WithContext(err, "expand path")
		}

		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(filepath.Dir(path), expanded)
		}
		*field = expanded
	}
	return config, nil
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath returns the path to the user's global rdmstage
// configuration. This path is expanded, so it can be directly passed to file
// operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
