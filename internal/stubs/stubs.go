// Package stubs holds the class declarations the type engine reads: the ORM's
// field, relation and lookup classes with their private descriptor
// annotations, plus the model classes synthesized from an app registry.
package stubs

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/ormtypes/internal/types"
)

// Private descriptor attributes declared on field classes
const (
	SetTypeAttr         = "_pyi_private_set_type"
	GetTypeAttr         = "_pyi_private_get_type"
	LookupExactTypeAttr = "_pyi_lookup_exact_type"
)

// Well-known class names
const (
	FieldFullname           = "django.db.models.fields.Field"
	ModelFullname           = "django.db.models.base.Model"
	WithAnnotationsFullname = "django_stubs_ext.WithAnnotations"
)

//go:embed declarations/*.yaml
var declarationsFS embed.FS

type document struct {
	Classes []classDecl `yaml:"classes"`
}

type classDecl struct {
	Name  string             `yaml:"name"`
	Bases []string           `yaml:"bases"`
	Attrs map[string]*string `yaml:"attrs"`
}

// Database is a set of class declarations keyed by fully-qualified name
type Database struct {
	mu    sync.RWMutex
	infos map[string]*types.TypeInfo
}

// NewDatabase creates an empty database
func NewDatabase() *Database {
	return &Database{infos: make(map[string]*types.TypeInfo)}
}

// Load returns a database holding the bundled declarations
func Load() (*Database, error) {
	db := NewDatabase()

	entries, err := declarationsFS.ReadDir("declarations")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		data, err := declarationsFS.ReadFile("declarations/" + entry.Name())
		if err != nil {
			return nil, err
		}
		if err := db.LoadYAML(data); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
	}
	return db, nil
}

// MustLoad is like Load but panics on error
func MustLoad() *Database {
	db, err := Load()
	if err != nil {
		panic(err)
	}
	return db
}

// LoadYAML adds the classes of a declaration document
func (d *Database) LoadYAML(data []byte) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse declarations: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Declare every class first so references resolve regardless of order.
	for _, decl := range doc.Classes {
		if decl.Name == "" {
			return fmt.Errorf("class declared without a name")
		}
		if _, exists := d.infos[decl.Name]; !exists {
			d.infos[decl.Name] = types.NewTypeInfo(decl.Name)
		}
	}

	for _, decl := range doc.Classes {
		info := d.infos[decl.Name]
		for _, base := range decl.Bases {
			typ, err := types.Parse(base, d.resolveLocked)
			if err != nil {
				return fmt.Errorf("class %s: %w", decl.Name, err)
			}
			inst, ok := typ.(*types.Instance)
			if !ok {
				return fmt.Errorf("class %s: base %q is not a class", decl.Name, base)
			}
			info.Bases = append(info.Bases, inst)
		}

		names := make([]string, 0, len(decl.Attrs))
		for name := range decl.Attrs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			text := decl.Attrs[name]
			if text == nil || strings.TrimSpace(*text) == "" {
				info.Attrs[name] = nil
				continue
			}
			typ, err := types.Parse(*text, d.resolveLocked)
			if err != nil {
				return fmt.Errorf("class %s: attribute %s: %w", decl.Name, name, err)
			}
			info.Attrs[name] = typ
		}
	}
	return nil
}

// Lookup returns the declaration of a class
func (d *Database) Lookup(fullname string) (*types.TypeInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info, ok := d.infos[fullname]
	return info, ok
}

// Add registers a class declaration, replacing any previous one
func (d *Database) Add(info *types.TypeInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.infos[info.Fullname] = info
}

// ParseType parses an annotation against the database. Unknown classes are
// declared on first use.
func (d *Database) ParseType(text string) (types.Type, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return types.Parse(text, d.resolveLocked)
}

// resolveLocked maps a class reference to its declaration. Bare names such as
// "str" refer to builtins.
func (d *Database) resolveLocked(name string) *types.TypeInfo {
	if info, ok := d.infos[name]; ok {
		return info
	}
	if !strings.Contains(name, ".") {
		if info, ok := d.infos["builtins."+name]; ok {
			return info
		}
	}
	info := types.NewTypeInfo(name)
	d.infos[name] = info
	return info
}

// Len returns the number of declared classes
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.infos)
}

// GetPrivateDescriptorType reads a private descriptor attribute of a field
// class, made optional when nullable. A missing attribute is unconstrained.
func GetPrivateDescriptorType(info *types.TypeInfo, name string, nullable bool) types.Type {
	typ, ok := info.Get(name)
	if !ok {
		return types.NewAny(types.Explicit)
	}
	if typ == nil {
		return types.NewAny(types.Unannotated)
	}
	if nullable {
		return types.MakeOptional(typ)
	}
	return typ
}
