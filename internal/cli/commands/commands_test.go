package commands

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/ormtypes/internal/orm/conf"
	"github.com/conduit-lang/ormtypes/internal/testing/ormtest"
	"github.com/conduit-lang/ormtypes/internal/tooling"
)

func libraryProject(t *testing.T) string {
	t.Helper()
	return ormtest.New(t, ormtest.Library()).SettingsFile()
}

func TestModelsCommand(t *testing.T) {
	settings := libraryProject(t)

	stdout, _, err := run(t, "--settings", settings, "--no-color", "models")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "LABEL"), stdout)
	assert.Contains(t, stdout, "library.Book")
	assert.Contains(t, stdout, "library.models.Publisher")

	stdout, _, err = run(t, "--settings", settings, "--format", "json", "models")
	require.NoError(t, err)

	var models []tooling.ModelSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &models))
	var labels []string
	for _, model := range models {
		labels = append(labels, model.Label)
	}
	assert.Contains(t, labels, "library.Book")
	assert.Contains(t, labels, "contenttypes.ContentType")

	stdout, _, err = run(t, "--settings", settings, "--format", "json", "models", "--app", "library")
	require.NoError(t, err)
	models = nil
	require.NoError(t, json.Unmarshal([]byte(stdout), &models))
	require.Len(t, models, 2)
	assert.Equal(t, "library.Publisher", models[0].Label)
	assert.Equal(t, "library.Book", models[1].Label)

	_, _, err = run(t, "--settings", settings, "models", "--app", "shop")
	assert.True(t, errors.Is(err, tooling.ErrAppNotFound))
}

func TestFieldsCommand(t *testing.T) {
	settings := libraryProject(t)

	stdout, _, err := run(t, "--settings", settings, "--no-color", "fields", "library.Book")
	require.NoError(t, err)
	assert.Contains(t, stdout, "publisher_id")
	assert.Contains(t, stdout, "library.models.Publisher")
	assert.Contains(t, stdout, "builtins.int | None")

	stdout, _, err = run(t, "--settings", settings, "--format", "yaml", "fields", "library.Book", "--values")
	require.NoError(t, err)

	var fields []tooling.FieldSummary
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &fields))
	byName := make(map[string]string)
	for _, field := range fields {
		byName[field.Name] = field.GetType
	}
	assert.Equal(t, "builtins.int", byName["publisher"], "values() returns the related primary key")
}

func TestExpectedTypesCommand(t *testing.T) {
	settings := libraryProject(t)

	stdout, _, err := run(t, "--settings", settings, "--no-color", "expected-types", "library.Book", "--method", "create")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "library.Book (create)\n"), stdout)
	assert.Contains(t, stdout, "publisher_id")

	stdout, _, err = run(t, "--settings", settings, "--format", "json", "expected-types", "library.Book")
	require.NoError(t, err)
	var expected []tooling.TypedName
	require.NoError(t, json.Unmarshal([]byte(stdout), &expected))
	assert.Len(t, expected, 6)

	_, _, err = run(t, "--settings", settings, "expected-types", "library.Book", "--method", "save")
	assert.ErrorContains(t, err, "unknown method")
}

func TestLookupCommand(t *testing.T) {
	settings := libraryProject(t)

	stdout, stderr, err := run(t, "--settings", settings, "--no-color", "lookup", "library.Book", "publisher__name__icontains")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "fields:    publisher → name")
	assert.Contains(t, stdout, "operators: icontains")
	assert.Contains(t, stdout, "type:      builtins.str")

	stdout, _, err = run(t, "--settings", settings, "--format", "json", "lookup", "library.Book", "total__gt", "--annotate", "total=builtins.int")
	require.NoError(t, err)
	var result tooling.ResolvedLookup
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "builtins.int", result.ExpectedType)

	_, stderr, err = run(t, "--settings", settings, "--no-color", "lookup", "library.Book", "nope")
	assert.True(t, errors.Is(err, errReported))
	assert.Contains(t, stderr, "INVALID LOOKUP: Cannot resolve keyword 'nope' into field.")

	_, _, err = run(t, "--settings", settings, "lookup", "library.Book", "title", "--annotate", "broken")
	assert.ErrorContains(t, err, "expected name=type")
}

func TestModelNotFound(t *testing.T) {
	settings := libraryProject(t)

	_, stderr, err := run(t, "--settings", settings, "--no-color", "fields", "library.Bok")
	assert.True(t, errors.Is(err, errReported))
	assert.Contains(t, stderr, "MODEL NOT FOUND")
	assert.Contains(t, stderr, "Did you mean: library.Book?")
}

func TestSettingsErrors(t *testing.T) {
	_, stderr, err := run(t, "--settings", "missing.settings", "--no-color", "models")
	assert.True(t, errors.Is(err, errReported))
	assert.Contains(t, stderr, "SETTINGS ERROR")
	assert.Contains(t, stderr, "No module named 'missing.settings'")

	t.Setenv(conf.SettingsModuleEnv, "")
	_, stderr, err = run(t, "--no-color", "models")
	assert.True(t, errors.Is(err, errReported))
	assert.Contains(t, stderr, "No settings module configured.")
}

func TestParseAnnotations(t *testing.T) {
	extra, err := parseAnnotations([]string{"total=builtins.int", " n = int "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"total": "builtins.int", "n": "int"}, extra)

	extra, err = parseAnnotations(nil)
	assert.NoError(t, err)
	assert.Nil(t, extra)

	for _, bad := range []string{"total", "=int", "total="} {
		_, err := parseAnnotations([]string{bad})
		assert.Error(t, err, bad)
	}
}
