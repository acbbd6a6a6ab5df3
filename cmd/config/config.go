package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/rdmstage/cmd/util"
	"github.com/sidkik/rdmstage/pkg/config"
	"github.com/sidkik/rdmstage/pkg/errors"
	"github.com/sidkik/rdmstage/pkg/resolve"
)

// Mocked for unit testing.
var (
	stdout              io.Writer = os.Stdout
	stdin               io.Reader = os.Stdin
	guessDefaults                 = guessDefaultsImpl
	parseUserConfig               = config.ParseUser
	stat                          = os.Stat
	getWorkingDirectory           = os.Getwd
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the rdmstage user configuration",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.MountDir, "mount-dir", "",
		"Set the directory where the project storage is mounted. "+
			"Optional: If not set, `rdmstage config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.DefaultStorage, "default-storage", "",
		"Set the storage provider that $default_storage_path refers to. "+
			"Optional: If not set, `rdmstage config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.OutputRoot, "output-root", "",
		"Set the directory that mapping targets are relative to. "+
			"Optional: If not set, `rdmstage config` will interactively prompt.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-mount-dir",
			short: "Get the currently configured storage mount directory",
			fn:    func(cfg config.User) string { return cfg.MountDir },
		},
		{
			use:   "get-default-storage",
			short: "Get the currently configured default storage provider",
			fn:    func(cfg config.User) string { return cfg.DefaultStorage },
		},
		{
			use:   "get-output-root",
			short: "Get the currently configured output root",
			fn:    func(cfg config.User) string { return cfg.OutputRoot },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg.WithDefaults()))
			},
		})
	}

	return cmd
}

// SetupConfig prompts for any settings missing from `cliOpts`, and writes
// the result to the user config.
func SetupConfig(cliOpts config.User) error {
	cfg, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := config.WriteUser(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

var storageNamePattern = regexp.MustCompile(`^[a-z0-9][-_a-z0-9]*$`)

func storageValidationFn(name string) (string, bool) {
	if storageNamePattern.MatchString(name) {
		return "", true
	}

	return "This storage provider name contains invalid characters. " +
		"Provider names are a single path segment made of\n" +
		"1) lowercase letters (a-z) \n" +
		"2) numbers (0-9) \n" +
		"3) - and _ \n" +
		"For example, `osfstorage` or `s3`.", false
}

func absPathValidationFn(path string) (string, bool) {
	expanded, err := homedir.Expand(path)
	if err == nil && filepath.IsAbs(expanded) {
		return "", true
	}
	return "Please enter an absolute path.", false
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is.
// It makes best guesses at reasonable defaults, and allows users to explicitly
// override them if desired.
func generateConfig(cliOpts config.User) (config.User, error) {
	defaults := guessDefaults()
	currConfig, err := parseUserConfig()
	if err != nil {
		currConfig = config.User{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg := cliOpts
	var prompts []prompt
	if cliOpts.MountDir == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the directory where the project storage is mounted.\n" +
				"Mapping sources are read relative to this directory.",
			prompt:        "Storage mount directory",
			defaultAnswer: defaults.MountDir,
			currAnswer:    currConfig.MountDir,
			field:         &cfg.MountDir,
			validationFn:  absPathValidationFn,
		})
	}

	if cliOpts.DefaultStorage == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the storage provider that $default_storage_path refers to.\n" +
				"Mappings that don't name a provider read from it.",
			prompt:        "Default storage provider",
			defaultAnswer: defaults.DefaultStorage,
			currAnswer:    currConfig.DefaultStorage,
			field:         &cfg.DefaultStorage,
			validationFn:  storageValidationFn,
		})
	}

	if cliOpts.OutputRoot == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the directory that mapping targets are staged into.\n" +
				"It defaults to the current directory.",
			prompt:        "Output root",
			defaultAnswer: defaults.OutputRoot,
			currAnswer:    currConfig.OutputRoot,
			field:         &cfg.OutputRoot,
			validationFn:  absPathValidationFn,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.User{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	return cfg, nil
}

// guessDefaults tries to guess reasonable defaults for the fields in the user
// config.
func guessDefaultsImpl() (cfg config.User) {
	if mountDir, err := guessMountDir(); err == nil {
		cfg.MountDir = mountDir
	} else {
		log.WithError(err).Info("Failed to guess mount directory")
	}

	cfg.DefaultStorage = config.DefaultStorage

	if outputRoot, err := getWorkingDirectory(); err == nil {
		cfg.OutputRoot = outputRoot
	} else {
		log.WithError(err).Info("Failed to guess output root")
	}

	return cfg
}

// guessMountDir returns the conventional mount directory if it exists.
func guessMountDir() (string, error) {
	if _, err := stat(resolve.DefaultMountDir); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.WithContext(err, "stat")
	}
	return resolve.DefaultMountDir, nil
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		// defaultAnswer or currAnswer exists.
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if choice == nOptions {
				// Enter manually.
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
