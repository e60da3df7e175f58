// Package bootstrap boots the ORM framework for a settings module and hands
// back the populated app registry together with the runtime settings.
package bootstrap

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/orm/conf"
	"github.com/conduit-lang/ormtypes/internal/orm/schema"
)

// Registry is a booted framework instance
type Registry struct {
	// ID identifies the boot for log correlation
	ID       uuid.UUID
	Apps     *schema.Apps
	Settings *conf.Settings
}

type options struct {
	source schema.DeclarationSource
	logger *zap.Logger
}

// Option configures Initialize
type Option func(*options)

// WithSource replaces the declaration source. Bundled apps are still served.
func WithSource(source schema.DeclarationSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithLogger sets the logger used while booting
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Initialize boots the framework for the settings module named by locator.
// The process environment is restored on return, on every path.
// It panics when booting completes without a ready registry or configured settings.
func Initialize(locator string, opts ...Option) (*Registry, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	reg := &Registry{
		ID:       uuid.New(),
		Settings: conf.NewSettings(),
	}
	logger := o.logger.With(zap.String("boot_id", reg.ID.String()), zap.String("settings_module", locator))

	err := withTempEnviron(func() error {
		if err := os.Setenv(conf.SettingsModuleEnv, locator); err != nil {
			return err
		}

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		if !slices.Contains(conf.SearchPath(), cwd) {
			conf.AppendSearchPath(cwd)
		}

		if !reg.Settings.Configured() {
			if err := reg.Settings.Setup(); err != nil {
				return err
			}
		}
		logger.Debug("settings loaded", zap.String("file", reg.Settings.File), zap.Strings("installed_apps", reg.Settings.InstalledApps))

		autoField, ok := schema.ClassByName(reg.Settings.DefaultAutoField)
		if !ok || !autoField.IsAuto() {
			return fmt.Errorf("%w: default_auto_field refers to %q, which is not an auto field class", conf.ErrImproperlyConfigured, reg.Settings.DefaultAutoField)
		}

		source := o.source
		if source == nil {
			source = &schema.SearchPathSource{Roots: conf.SearchPath}
		}

		reg.Apps = schema.NewApps(
			schema.ChainSource{source, schema.ContribSource{}},
			schema.WithDefaultAutoField(autoField),
			schema.WithSwappableSettings(reg.Settings.SwappableSettings()),
		)
		reg.Apps.ClearCache()
		return reg.Apps.Populate(reg.Settings.InstalledApps)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s: %w", locator, err)
	}

	if !reg.Apps.Ready() {
		panic("Apps are not ready")
	}
	if !reg.Settings.Configured() {
		panic("Settings are not configured")
	}

	for _, pending := range reg.Apps.PendingOperations() {
		logger.Warn("unresolved relation", zap.String("detail", pending))
	}
	logger.Debug("registry ready", zap.Int("models", len(reg.Apps.GetModels(true, true))))

	return reg, nil
}

// withTempEnviron runs fn and then restores the process environment
func withTempEnviron(fn func() error) error {
	saved := os.Environ()
	defer func() {
		os.Clearenv()
		for _, kv := range saved {
			if key, value, ok := strings.Cut(kv, "="); ok {
				os.Setenv(key, value)
			}
		}
	}()
	return fn()
}
