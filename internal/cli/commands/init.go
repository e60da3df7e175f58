package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/ormtypes/internal/cli/config"
	"github.com/conduit-lang/ormtypes/internal/cli/ui"
)

// configFileName is the file written by init
const configFileName = "ormtypes.yml"

var moduleNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// initAnswers is the configuration collected by init
type initAnswers struct {
	SettingsModule string   `yaml:"settings_module"`
	SearchPath     []string `yaml:"search_path,omitempty"`
	Output         struct {
		Format string `yaml:"format"`
		Color  bool   `yaml:"color"`
	} `yaml:"output"`
}

// validateSettingsModule accepts a dotted module path or a YAML file path
func validateSettingsModule(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("settings module is required")
	}
	if ext := filepath.Ext(value); ext == ".yaml" || ext == ".yml" {
		return nil
	}
	if !moduleNamePattern.MatchString(value) {
		return fmt.Errorf("settings module must be a dotted module path like mysite.settings, got %q", value)
	}
	return nil
}

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		dir         string
		answers     initAnswers
		searchPath  string
		interactive bool
		force       bool
		noColor     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an ormtypes.yml configuration",
		Long: `Create ormtypes.yml in the project directory. Without --settings-module
the values are asked interactively.`,
		Example: `  ormtypes init
  ormtypes init --settings-module mysite.settings --search-path src`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(dir, configFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if searchPath != "" {
				answers.SearchPath = splitList(searchPath)
			}
			answers.Output.Color = !noColor

			if interactive || answers.SettingsModule == "" {
				if err := askInitQuestions(&answers, searchPath); err != nil {
					return err
				}
			}

			if err := validateSettingsModule(answers.SettingsModule); err != nil {
				return err
			}
			if err := config.Validate(&config.Config{
				SettingsModule: answers.SettingsModule,
				SearchPath:     answers.SearchPath,
				Output:         config.OutputConfig{Format: answers.Output.Format, Color: answers.Output.Color},
			}); err != nil {
				return err
			}

			data, err := yaml.Marshal(&answers)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			ui.Success(cmd.OutOrStdout(), fmt.Sprintf("Created %s", path), noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory to write the configuration into")
	cmd.Flags().StringVar(&answers.SettingsModule, "settings-module", "", "settings module to boot")
	cmd.Flags().StringVar(&searchPath, "search-path", "", "comma-separated directories searched for modules")
	cmd.Flags().StringVar(&answers.Output.Format, "format", config.FormatText, "default output format")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "ask for every value")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output by default")

	return cmd
}

func askInitQuestions(answers *initAnswers, searchPath string) error {
	questions := []*survey.Question{
		{
			Name: "settings",
			Prompt: &survey.Input{
				Message: "Settings module:",
				Default: answers.SettingsModule,
				Help:    "Dotted module path (mysite.settings) or a settings YAML file",
			},
			Validate: func(ans interface{}) error {
				s, _ := ans.(string)
				return validateSettingsModule(s)
			},
		},
		{
			Name: "searchPath",
			Prompt: &survey.Input{
				Message: "Search path (comma-separated):",
				Default: searchPath,
			},
		},
		{
			Name: "format",
			Prompt: &survey.Select{
				Message: "Default output format:",
				Options: []string{config.FormatText, config.FormatJSON, config.FormatYAML},
				Default: answers.Output.Format,
			},
		},
	}

	var result struct {
		Settings   string
		SearchPath string
		Format     string
	}
	if err := survey.Ask(questions, &result); err != nil {
		return err
	}

	answers.SettingsModule = strings.TrimSpace(result.Settings)
	answers.SearchPath = splitList(result.SearchPath)
	answers.Output.Format = result.Format
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
