package commands

import (
	"bytes"
	"strings"
	"testing"
)

// run executes the root command with args and returns stdout and stderr
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "ormtypes" {
		t.Errorf("expected Use to be 'ormtypes', got %s", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if cmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	// Check subcommands are registered
	expectedCommands := []string{
		"version",
		"models",
		"fields",
		"expected-types",
		"lookup",
		"init",
		"serve",
	}

	for _, expected := range expectedCommands {
		found := false
		for _, cmd := range cmd.Commands() {
			if cmd.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %s to be registered", expected)
		}
	}

	for _, flag := range []string{"settings", "search-path", "format", "no-color", "verbose"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestNewVersionCommand(t *testing.T) {
	// Set test version info
	Version = "1.0.0-test"
	GitCommit = "abc123"
	BuildDate = "2025-01-01"
	GoVersion = "go1.23"

	stdout, _, err := run(t, "version", "--no-color")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}

	for _, expected := range []string{"ormtypes version: 1.0.0-test", "Git commit: abc123", "Build date: 2025-01-01", "Go version: go1.23"} {
		if !strings.Contains(stdout, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, stdout)
		}
	}
}

func TestUnknownFormat(t *testing.T) {
	_, _, err := run(t, "--format", "xml", "models")
	if err == nil || !strings.Contains(err.Error(), "output.format") {
		t.Errorf("expected output format error, got %v", err)
	}
}
