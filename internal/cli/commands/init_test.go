package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	stdout, _, err := run(t, "init", "--dir", dir, "--settings-module", "mysite.settings", "--search-path", "src, vendor", "--format", "json", "--no-color")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(stdout, "✓ Created") {
		t.Errorf("expected success message, got: %s", stdout)
	}

	data, err := os.ReadFile(filepath.Join(dir, configFileName))
	if err != nil {
		t.Fatalf("failed to read %s: %v", configFileName, err)
	}

	var written initAnswers
	if err := yaml.Unmarshal(data, &written); err != nil {
		t.Fatalf("invalid YAML written: %v", err)
	}
	if written.SettingsModule != "mysite.settings" {
		t.Errorf("expected settings module 'mysite.settings', got %q", written.SettingsModule)
	}
	if len(written.SearchPath) != 2 || written.SearchPath[0] != "src" || written.SearchPath[1] != "vendor" {
		t.Errorf("expected search path [src vendor], got %v", written.SearchPath)
	}
	if written.Output.Format != "json" || written.Output.Color {
		t.Errorf("unexpected output config: %+v", written.Output)
	}

	// An existing configuration is kept unless forced
	_, _, err = run(t, "init", "--dir", dir, "--settings-module", "other.settings")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected already exists error, got %v", err)
	}

	_, _, err = run(t, "init", "--dir", dir, "--settings-module", "other.settings", "--force")
	if err != nil {
		t.Fatalf("init --force failed: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, configFileName))
	if !strings.Contains(string(data), "other.settings") {
		t.Errorf("expected configuration to be overwritten, got:\n%s", data)
	}
}

func TestInitRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	_, _, err := run(t, "init", "--dir", dir, "--settings-module", "my-site/settings")
	if err == nil {
		t.Error("expected invalid module error")
	}

	_, _, err = run(t, "init", "--dir", dir, "--settings-module", "mysite.settings", "--format", "xml")
	if err == nil {
		t.Error("expected invalid format error")
	}

	if _, err := os.Stat(filepath.Join(dir, configFileName)); !os.IsNotExist(err) {
		t.Error("expected no configuration to be written")
	}
}

func TestValidateSettingsModule(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"mysite.settings", false},
		{"settings", false},
		{"conf/settings.yaml", false},
		{"", true},
		{"my-site.settings", true},
		{"mysite..settings", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := validateSettingsModule(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSettingsModule(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}
