// Package conf loads the ORM's runtime settings module.
//
// A settings module is a YAML document named either by a dotted module path,
// resolved against the process-wide search path, or by a file path.
package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// SettingsModuleEnv names the environment variable that points at the settings module
const SettingsModuleEnv = "ORM_SETTINGS_MODULE"

// ErrImproperlyConfigured is returned when the settings cannot be set up
var ErrImproperlyConfigured = errors.New("improperly configured")

var searchPath struct {
	mu   sync.RWMutex
	dirs []string
}

// AppendSearchPath adds a directory to the module search path
func AppendSearchPath(dir string) {
	searchPath.mu.Lock()
	defer searchPath.mu.Unlock()
	searchPath.dirs = append(searchPath.dirs, dir)
}

// SearchPath returns a copy of the module search path
func SearchPath() []string {
	searchPath.mu.RLock()
	defer searchPath.mu.RUnlock()
	return append([]string(nil), searchPath.dirs...)
}

// RemoveSearchPath drops every occurrence of dir from the module search path
func RemoveSearchPath(dir string) {
	searchPath.mu.Lock()
	defer searchPath.mu.Unlock()
	kept := searchPath.dirs[:0]
	for _, existing := range searchPath.dirs {
		if existing != dir {
			kept = append(kept, existing)
		}
	}
	searchPath.dirs = kept
}

// ResetSearchPath empties the module search path (useful for testing)
func ResetSearchPath() {
	searchPath.mu.Lock()
	defer searchPath.mu.Unlock()
	searchPath.dirs = nil
}

// FindModule resolves a settings locator to a file
func FindModule(locator string) (string, error) {
	if isFileLocator(locator) {
		if _, err := os.Stat(locator); err != nil {
			return "", fmt.Errorf("%w: settings file %s: %w", ErrImproperlyConfigured, locator, err)
		}
		return locator, nil
	}

	rel := filepath.Join(strings.Split(locator, ".")...)
	for _, root := range SearchPath() {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(root, rel+ext)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: No module named '%s'", ErrImproperlyConfigured, locator)
}

func isFileLocator(locator string) bool {
	ext := filepath.Ext(locator)
	return ext == ".yaml" || ext == ".yml" || strings.ContainsRune(locator, os.PathSeparator)
}

// Settings holds the ORM's runtime configuration
type Settings struct {
	InstalledApps    []string `mapstructure:"installed_apps"`
	DefaultAutoField string   `mapstructure:"default_auto_field"`
	AuthUserModel    string   `mapstructure:"auth_user_model"`
	SecretKey        string   `mapstructure:"secret_key"`

	// Module is the locator the settings were loaded from
	Module string `mapstructure:"-"`
	// File is the resolved settings file
	File string `mapstructure:"-"`

	configured bool
}

// NewSettings returns unconfigured settings
func NewSettings() *Settings {
	return &Settings{}
}

// Configured reports whether Setup completed
func (s *Settings) Configured() bool {
	return s.configured
}

// Setup loads the module named by the ORM_SETTINGS_MODULE environment variable
func (s *Settings) Setup() error {
	module := os.Getenv(SettingsModuleEnv)
	if module == "" {
		return fmt.Errorf("%w: settings are not configured. You must define the environment variable %s", ErrImproperlyConfigured, SettingsModuleEnv)
	}

	path, err := FindModule(module)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetDefault("installed_apps", []string{})
	v.SetDefault("default_auto_field", "BigAutoField")
	v.SetDefault("auth_user_model", "auth.User")
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read settings module %s: %w", module, err)
	}

	var loaded Settings
	if err := v.Unmarshal(&loaded); err != nil {
		return fmt.Errorf("failed to unmarshal settings module %s: %w", module, err)
	}

	if err := validateSettings(&loaded); err != nil {
		return err
	}

	*s = loaded
	s.Module = module
	s.File = path
	s.configured = true
	return nil
}

// SwappableSettings returns the swappable model settings keyed by setting name
func (s *Settings) SwappableSettings() map[string]string {
	return map[string]string{"AUTH_USER_MODEL": s.AuthUserModel}
}

// IsInstalled reports whether the app name appears in installed_apps
func (s *Settings) IsInstalled(app string) bool {
	for _, installed := range s.InstalledApps {
		if installed == app {
			return true
		}
	}
	return false
}

// validateSettings validates the settings
func validateSettings(s *Settings) error {
	if s.SecretKey == "" {
		return fmt.Errorf("%w: the secret_key setting must not be empty", ErrImproperlyConfigured)
	}
	seen := make(map[string]bool, len(s.InstalledApps))
	for _, app := range s.InstalledApps {
		if seen[app] {
			return fmt.Errorf("%w: Application names aren't unique, duplicates: %s", ErrImproperlyConfigured, app)
		}
		seen[app] = true
	}
	if !strings.Contains(s.AuthUserModel, ".") {
		return fmt.Errorf("%w: auth_user_model must be of the form 'app_label.model_name'", ErrImproperlyConfigured)
	}
	return nil
}
