// Package ormtest writes throwaway ORM projects for tests: a settings module
// plus one models.yaml per app, rooted in a temporary directory that is put
// on the module search path.
package ormtest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/ormtypes/internal/bootstrap"
	"github.com/conduit-lang/ormtypes/internal/orm/conf"
)

// SettingsModule is the module name of the generated settings file
const SettingsModule = "mysettings"

const contentTypesApp = "django.contrib.contenttypes"

// ErrConflictingSettings is returned when both InstalledApps and CustomSettings are given
var ErrConflictingSettings = errors.New(`"installed_apps" and "custom_settings" are not compatible, please use one or the other`)

// Case describes a test project
type Case struct {
	// InstalledApps generates the installed_apps setting. The contenttypes
	// app is appended when missing.
	InstalledApps []string
	// CustomSettings is a raw settings document
	CustomSettings string
	// Apps maps app names to their models.yaml content
	Apps map[string]string
}

// Project is a generated test project
type Project struct {
	Root           string
	SettingsModule string
}

// Write generates the project files under root
func Write(root string, c Case) (*Project, error) {
	if len(c.InstalledApps) > 0 && c.CustomSettings != "" {
		return nil, ErrConflictingSettings
	}

	settings := c.CustomSettings
	if c.InstalledApps != nil {
		apps := slices.Clone(c.InstalledApps)
		if !slices.Contains(apps, contentTypesApp) {
			apps = append(apps, contentTypesApp)
		}
		data, err := yaml.Marshal(map[string][]string{"installed_apps": apps})
		if err != nil {
			return nil, fmt.Errorf("failed to encode installed apps: %w", err)
		}
		settings += string(data)
	}
	if !strings.Contains(settings, "secret_key") {
		settings = "secret_key: \"1\"\n" + settings
	}

	if err := os.WriteFile(filepath.Join(root, SettingsModule+".yaml"), []byte(settings), 0644); err != nil {
		return nil, fmt.Errorf("failed to write settings: %w", err)
	}

	for app, models := range c.Apps {
		dir := filepath.Join(root, filepath.Join(strings.Split(app, ".")...))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create app %s: %w", app, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "models.yaml"), []byte(models), 0644); err != nil {
			return nil, fmt.Errorf("failed to write models for %s: %w", app, err)
		}
	}

	return &Project{Root: root, SettingsModule: SettingsModule}, nil
}

// New writes the project into a temporary directory and adds it to the
// module search path for the duration of the test
func New(t testing.TB, c Case) *Project {
	t.Helper()

	project, err := Write(t.TempDir(), c)
	if err != nil {
		t.Fatalf("failed to write test project: %v", err)
	}

	conf.AppendSearchPath(project.Root)
	t.Cleanup(func() { conf.RemoveSearchPath(project.Root) })

	return project
}

// SettingsFile returns the path of the generated settings module
func (p *Project) SettingsFile() string {
	return filepath.Join(p.Root, p.SettingsModule+".yaml")
}

// Boot initializes the framework for the project. The settings file is passed
// by path so projects of earlier tests cannot shadow it.
func (p *Project) Boot(t testing.TB, opts ...bootstrap.Option) *bootstrap.Registry {
	t.Helper()

	reg, err := bootstrap.Initialize(p.SettingsFile(), opts...)
	if err != nil {
		t.Fatalf("failed to boot test project: %v", err)
	}
	return reg
}
