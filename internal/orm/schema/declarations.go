package schema

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppDeclaration describes the models of one installed app.
type AppDeclaration struct {
	// Label defaults to the last segment of the app name.
	Label string `yaml:"label"`
	// Module defaults to "<app name>.models".
	Module string             `yaml:"module"`
	Models []ModelDeclaration `yaml:"models"`
}

// ModelDeclaration describes one model class.
type ModelDeclaration struct {
	Name      string             `yaml:"name"`
	Module    string             `yaml:"module"`
	Abstract  bool               `yaml:"abstract"`
	Proxy     bool               `yaml:"proxy"`
	Bases     []string           `yaml:"bases"`
	Swappable string             `yaml:"swappable"`
	Fields    []FieldDeclaration `yaml:"fields"`

	// Annotations are explicit attribute types, e.g. "Field[builtins.str, builtins.str]".
	Annotations map[string]string `yaml:"annotations"`
}

// FieldDeclaration describes one field.
type FieldDeclaration struct {
	Name       string `yaml:"name"`
	Class      string `yaml:"class"`
	Null       bool   `yaml:"null"`
	Blank      bool   `yaml:"blank"`
	PrimaryKey bool   `yaml:"primary_key"`
	// Default is kept as a raw node so an explicit null still counts as a default.
	Default yaml.Node `yaml:"default"`

	To               string `yaml:"to"`
	ToField          string `yaml:"to_field"`
	RelatedName      string `yaml:"related_name"`
	RelatedQueryName string `yaml:"related_query_name"`
	Through          string `yaml:"through"`

	BaseField *FieldDeclaration `yaml:"base_field"`
}

// UnmarshalYAML decodes a field mapping. A plain `null:` key resolves to a
// null scalar rather than the string "null", so the flag is read by hand.
func (d *FieldDeclaration) UnmarshalYAML(value *yaml.Node) error {
	type plain FieldDeclaration
	if err := value.Decode((*plain)(d)); err != nil {
		return err
	}
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		if key.Kind != yaml.ScalarNode || key.Value != "null" {
			continue
		}
		if err := value.Content[i+1].Decode(&d.Null); err != nil {
			return fmt.Errorf("field %q: null: %w", d.Name, err)
		}
	}
	return nil
}

// HasDefault reports whether the declaration provides a default value.
func (d *FieldDeclaration) HasDefault() bool {
	return d.Default.Kind != 0
}

// ParseAppDeclaration decodes a models.yaml document.
func ParseAppDeclaration(data []byte) (*AppDeclaration, error) {
	var decl AppDeclaration
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to parse model declarations: %w", err)
	}
	return &decl, nil
}

// DeclarationSource finds the model declarations of an installed app.
type DeclarationSource interface {
	// Declarations returns ErrAppNotFound when the source does not know the app.
	Declarations(appName string) (*AppDeclaration, error)
}

// SearchPathSource reads "<root>/<app/path>/models.yaml" from each root in order.
type SearchPathSource struct {
	Roots func() []string
}

// Declarations implements DeclarationSource
func (s *SearchPathSource) Declarations(appName string) (*AppDeclaration, error) {
	rel := filepath.Join(strings.Split(appName, ".")...)
	for _, root := range s.Roots() {
		for _, name := range []string{"models.yaml", "models.yml"} {
			path := filepath.Join(root, rel, name)
			data, err := os.ReadFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			decl, err := ParseAppDeclaration(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			return decl, nil
		}
	}
	return nil, fmt.Errorf("%w: No module named '%s'", ErrAppNotFound, appName)
}

//go:embed contrib/*.yaml
var contribFS embed.FS

// ContribSource serves the declarations of the framework's bundled apps.
type ContribSource struct{}

// Declarations implements DeclarationSource
func (ContribSource) Declarations(appName string) (*AppDeclaration, error) {
	data, err := contribFS.ReadFile("contrib/" + appName + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: No module named '%s'", ErrAppNotFound, appName)
	}
	return ParseAppDeclaration(data)
}

// ChainSource asks each source in turn.
type ChainSource []DeclarationSource

// Declarations implements DeclarationSource
func (c ChainSource) Declarations(appName string) (*AppDeclaration, error) {
	for _, source := range c {
		decl, err := source.Declarations(appName)
		if err == nil {
			return decl, nil
		}
		if !errors.Is(err, ErrAppNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: No module named '%s'", ErrAppNotFound, appName)
}

// MapSource serves in-memory declarations keyed by app name.
type MapSource map[string]*AppDeclaration

// Declarations implements DeclarationSource
func (m MapSource) Declarations(appName string) (*AppDeclaration, error) {
	decl, ok := m[appName]
	if !ok {
		return nil, fmt.Errorf("%w: No module named '%s'", ErrAppNotFound, appName)
	}
	return decl, nil
}
