package util

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/rdmstage/pkg/config"
	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/mapping"
	"github.com/sidkik/rdmstage/pkg/resolve"
)

// Mocked for unit testing.
var (
	parseUserConfig     = config.ParseUser
	getWorkingDirectory = os.Getwd
)

// StageOptions are the command line flags shared by the commands that load
// and resolve a path mapping. Unset flags fall back to the user config.
type StageOptions struct {
	BinderDir      string
	OutputRoot     string
	MountDir       string
	DefaultStorage string
}

// AddFlags registers the options on the given command. Commands that never
// resolve paths can set `resolveFlags` to false to only accept the binder
// directory.
func (opts *StageOptions) AddFlags(cmd *cobra.Command, resolveFlags bool) {
	cmd.Flags().StringVar(&opts.BinderDir, "binder-dir", "",
		"The repository directory that contains the .binder or binder "+
			"directory. Defaults to the current directory.")
	if !resolveFlags {
		return
	}

	cmd.Flags().StringVarP(&opts.OutputRoot, "output", "o", "",
		"The directory that mapping targets are staged into. "+
			"Defaults to the configured output root, or the current directory.")
	cmd.Flags().StringVar(&opts.MountDir, "mount-dir", "",
		"The directory where the project storage is mounted. "+
			"Defaults to the configured mount directory, or "+resolve.DefaultMountDir+".")
	cmd.Flags().StringVar(&opts.DefaultStorage, "default-storage", "",
		"The storage provider that $default_storage_path refers to. "+
			"Defaults to the configured provider, or "+config.DefaultStorage+".")
}

// Candidates returns the paths that are checked for a mapping document.
func (opts StageOptions) Candidates() ([]string, error) {
	binderDir, err := absPath(opts.BinderDir)
	if err != nil {
		return nil, errors.WithContext(err, "get binder directory")
	}
	return mapping.Candidates(binderDir), nil
}

// LoadSpec loads the mapping document from the binder directory.
func (opts StageOptions) LoadSpec() (mapping.Spec, error) {
	candidates, err := opts.Candidates()
	if err != nil {
		return mapping.Spec{}, err
	}
	return mapping.Load(candidates)
}

// Context merges the flags with the user config into a resolve.Context.
func (opts StageOptions) Context() (resolve.Context, error) {
	userConfig, err := parseUserConfig()
	if err != nil {
		if _, ok := err.(errors.FileNotFound); !ok {
			return resolve.Context{}, errors.WithContext(err, "parse user config")
		}
		log.WithError(err).Debug("No user config. Using the built-in defaults.")
		userConfig = config.User{}
	}

	merged := userConfig
	for _, override := range []struct {
		flag  string
		field *string
	}{
		{opts.OutputRoot, &merged.OutputRoot},
		{opts.MountDir, &merged.MountDir},
		{opts.DefaultStorage, &merged.DefaultStorage},
	} {
		if override.flag != "" {
			*override.field = override.flag
		}
	}
	merged = merged.WithDefaults()

	outputRoot, err := absPath(merged.OutputRoot)
	if err != nil {
		return resolve.Context{}, errors.WithContext(err, "get output root")
	}

	mountDir, err := absPath(merged.MountDir)
	if err != nil {
		return resolve.Context{}, errors.WithContext(err, "get mount directory")
	}

	log.WithFields(log.Fields{
		"outputRoot":     outputRoot,
		"mountDir":       mountDir,
		"defaultStorage": merged.DefaultStorage,
	}).Debug("Resolved staging context")
	return resolve.NewContext(merged.DefaultStorage, outputRoot, mountDir)
}

// absPath expands `~` and makes the path absolute. The empty path refers to
// the working directory.
func absPath(path string) (string, error) {
	if path == "" {
		return getWorkingDirectory()
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.WithContext(err, "expand home directory")
	}

	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}

	wd, err := getWorkingDirectory()
	if err != nil {
		return "", errors.WithContext(err, "get working directory")
	}
	return filepath.Join(wd, expanded), nil
}
