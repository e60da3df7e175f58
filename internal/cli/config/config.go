package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/conduit-lang/ormtypes/internal/orm/conf"
)

// Config represents the ormtypes tool configuration
type Config struct {
	SettingsModule string       `mapstructure:"settings_module"`
	SearchPath     []string     `mapstructure:"search_path"`
	Output         OutputConfig `mapstructure:"output"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Load loads the configuration from ormtypes.yml or ormtypes.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("settings_module", "")
	v.SetDefault("search_path", []string{})
	v.SetDefault("output.format", FormatText)
	v.SetDefault("output.color", true)

	// Set config name and paths
	v.SetConfigName("ormtypes")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// ORMTYPES_SETTINGS_MODULE, ORMTYPES_OUTPUT_FORMAT, ...
	v.SetEnvPrefix("ORMTYPES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetSettingsModule returns the settings module from config or environment
func (c *Config) GetSettingsModule() string {
	if c.SettingsModule != "" {
		return c.SettingsModule
	}
	return os.Getenv(conf.SettingsModuleEnv)
}

// InProject checks if the current directory holds an ormtypes configuration
func InProject() bool {
	if _, err := os.Stat("ormtypes.yml"); err == nil {
		return true
	}
	if _, err := os.Stat("ormtypes.yaml"); err == nil {
		return true
	}
	return false
}

// GetProjectRoot tries to find the project root by looking for ormtypes.yml
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "ormtypes.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "ormtypes.yaml")); err == nil {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", fmt.Errorf("not in an ormtypes project (no ormtypes.yml found)")
		}
		dir = parent
	}
}

// Validate checks a configuration after flags were merged in
func Validate(cfg *Config) error {
	switch cfg.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("output.format must be one of text, json, yaml, got: %s", cfg.Output.Format)
	}
	for _, dir := range cfg.SearchPath {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("search_path entries must not be empty")
		}
	}
	return nil
}
