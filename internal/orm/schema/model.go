package schema

import (
	"fmt"
	"sort"
	"strings"
)

// TargetKind discriminates the encodings of a relation target.
type TargetKind int

const (
	// TargetSelf is the literal self-reference marker.
	TargetSelf TargetKind = iota
	// TargetLocal is an unqualified model name in the declaring model's namespace.
	TargetLocal
	// TargetQualified is an "app_label.ModelName" reference.
	TargetQualified
)

// String returns the string representation of the target kind
func (k TargetKind) String() string {
	switch k {
	case TargetSelf:
		return "self"
	case TargetLocal:
		return "local"
	case TargetQualified:
		return "qualified"
	default:
		return "unknown"
	}
}

// SelfReference is the target spelling that points a relation at its own model.
const SelfReference = "self"

// RelationTarget is a relation target as written in a declaration. It is
// classified once when the declaration is read.
type RelationTarget struct {
	Kind  TargetKind
	Scope string // app label for qualified targets
	Name  string // model name; empty for self
}

// ParseRelationTarget classifies a textual relation target.
func ParseRelationTarget(raw string) (RelationTarget, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return RelationTarget{}, fmt.Errorf("empty relation target")
	case raw == SelfReference:
		return RelationTarget{Kind: TargetSelf}, nil
	case strings.Contains(raw, "."):
		idx := strings.LastIndex(raw, ".")
		if idx == 0 || idx == len(raw)-1 {
			return RelationTarget{}, fmt.Errorf("invalid relation target %q", raw)
		}
		return RelationTarget{Kind: TargetQualified, Scope: raw[:idx], Name: raw[idx+1:]}, nil
	default:
		return RelationTarget{Kind: TargetLocal, Name: raw}, nil
	}
}

// String returns the target as it was declared
func (t RelationTarget) String() string {
	switch t.Kind {
	case TargetSelf:
		return SelfReference
	case TargetQualified:
		return t.Scope + "." + t.Name
	default:
		return t.Name
	}
}

// RemoteField holds the relation configuration of a relation field.
type RemoteField struct {
	Target RelationTarget
	// Model is set once the framework resolved Target. It stays nil on
	// abstract models and for unresolvable targets.
	Model *Model

	ToField          string
	RelatedName      string
	RelatedQueryName string
	Through          string
}

// Member is an entry of a model's field list: a *Field or a *ForeignObjectRel.
type Member interface {
	// FieldName returns the name used in lookups.
	FieldName() string
	// TypeClass returns the member's class.
	TypeClass() *FieldClass
	// Nullable returns the declared nullability.
	Nullable() bool
	// IsRelation reports whether the member links to another model.
	IsRelation() bool
	// GetLookup returns the comparison operator registered under name.
	GetLookup(name string) (*LookupClass, bool)
}

// Field is a declared attribute of a model.
type Field struct {
	Name    string
	Attname string
	Column  string
	Class   *FieldClass

	Null        bool
	Blank       bool
	HasDefault  bool
	PrimaryKey  bool
	AutoCreated bool

	// Model is the model that owns the field.
	Model *Model

	// Remote is set for relation fields.
	Remote *RemoteField

	// BaseField is the element field of an array field.
	BaseField *Field
}

// FieldName returns the field's lookup name
func (f *Field) FieldName() string { return f.Name }

// TypeClass returns the field class
func (f *Field) TypeClass() *FieldClass { return f.Class }

// Nullable returns the declared nullability
func (f *Field) Nullable() bool { return f.Null }

// IsRelation reports whether the field is a relation or a generic foreign key
func (f *Field) IsRelation() bool {
	return f.Class.Is(ClassRelatedField) || f.Class.Is(ClassGenericForeignKey)
}

// GetLookup returns the comparison operator registered on the field's class
func (f *Field) GetLookup(name string) (*LookupClass, bool) {
	return f.Class.Lookup(name)
}

// IsConcrete reports whether the field is a Field subclass rather than a
// descriptor such as a generic foreign key.
func (f *Field) IsConcrete() bool { return f.Class.Is(ClassField) }

// IsForeignKey reports whether the field is a ForeignKey (or one-to-one).
func (f *Field) IsForeignKey() bool { return f.Class.Is(ClassForeignKey) }

// IsRelatedField reports whether the field is a forward relation.
func (f *Field) IsRelatedField() bool { return f.Class.Is(ClassRelatedField) }

// TargetField returns the field on the related model that a foreign key points at.
// It fails while the framework has not resolved the related model.
func (f *Field) TargetField() (*Field, error) {
	if f.Remote == nil || f.Remote.Model == nil {
		target := ""
		if f.Remote != nil {
			target = f.Remote.Target.String()
		}
		return nil, fmt.Errorf("%w: related model %q cannot be resolved", ErrUnresolvedRelation, target)
	}
	related := f.Remote.Model
	if f.Remote.ToField != "" {
		member, err := related.GetField(f.Remote.ToField)
		if err != nil {
			return nil, err
		}
		target, ok := member.(*Field)
		if !ok {
			return nil, fmt.Errorf("%s.%s is not a concrete field", related.Name, f.Remote.ToField)
		}
		return target, nil
	}
	pk := related.PK()
	if pk == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, related.Label())
	}
	return pk, nil
}

// clone copies the field for a model inheriting it from an abstract base.
func (f *Field) clone(owner *Model) *Field {
	copied := *f
	copied.Model = owner
	if f.Remote != nil {
		remote := *f.Remote
		remote.Model = nil
		copied.Remote = &remote
	}
	if f.BaseField != nil {
		copied.BaseField = f.BaseField.clone(owner)
	}
	return &copied
}

// ForeignObjectRel is a reverse relation derived from another model's forward relation.
type ForeignObjectRel struct {
	Class *FieldClass
	// Field is the forward relation this relation mirrors.
	Field *Field
	// Model is the model the reverse relation is attached to.
	Model *Model
	// Name is the query name used in lookups.
	Name string
}

// FieldName returns the related query name
func (r *ForeignObjectRel) FieldName() string { return r.Name }

// TypeClass returns the reverse relation class
func (r *ForeignObjectRel) TypeClass() *FieldClass { return r.Class }

// Nullable is always true for reverse relations
func (r *ForeignObjectRel) Nullable() bool { return true }

// IsRelation is always true for reverse relations
func (r *ForeignObjectRel) IsRelation() bool { return true }

// GetLookup delegates to the forward field
func (r *ForeignObjectRel) GetLookup(name string) (*LookupClass, bool) {
	return r.Field.GetLookup(name)
}

// Model is an ORM model class.
type Model struct {
	Name     string
	Module   string
	AppLabel string

	Abstract    bool
	Proxy       bool
	AutoCreated bool

	// Bases are the direct model ancestors in declaration order.
	Bases []*Model
	// ProxyFor is the concrete model a proxy stands for.
	ProxyFor *Model

	// Swappable names the setting that may replace this model.
	Swappable string
	// Swapped is the replacing label when the model is swapped out.
	Swapped string

	// Fields holds concrete and relation fields in declaration order,
	// inherited fields first.
	Fields []*Field
	// PrivateFields holds descriptors such as generic foreign keys.
	PrivateFields []*Field
	// Relations holds reverse relations pointing at this model.
	Relations []*ForeignObjectRel

	// Annotations maps attribute names to explicitly declared field types.
	Annotations map[string]string
}

// Fullname returns the model's fully-qualified class name
func (m *Model) Fullname() string {
	return m.Module + "." + m.Name
}

// Label returns "app_label.ModelName"
func (m *Model) Label() string {
	return m.AppLabel + "." + m.Name
}

// ModelName returns the lowercase model name
func (m *Model) ModelName() string {
	return strings.ToLower(m.Name)
}

// ConcreteModel returns the concrete model behind a proxy, or the model itself
func (m *Model) ConcreteModel() *Model {
	if m.ProxyFor != nil {
		return m.ProxyFor
	}
	return m
}

// MRO returns the model followed by its model ancestors, each once.
func (m *Model) MRO() []*Model {
	seen := make(map[*Model]bool)
	var order []*Model
	var walk func(model *Model)
	walk = func(model *Model) {
		if seen[model] {
			return
		}
		seen[model] = true
		order = append(order, model)
		for _, base := range model.Bases {
			walk(base)
		}
	}
	walk(m)
	return order
}

// GetFields returns reverse relations followed by forward and private fields.
// Proxy models see the reverse relations of their concrete model.
func (m *Model) GetFields() []Member {
	relations := m.ConcreteModel().Relations
	members := make([]Member, 0, len(relations)+len(m.Fields)+len(m.PrivateFields))
	for _, rel := range relations {
		members = append(members, rel)
	}
	for _, field := range m.Fields {
		members = append(members, field)
	}
	for _, field := range m.PrivateFields {
		members = append(members, field)
	}
	return members
}

// GetField finds a member by name. Forward fields also match their attname.
func (m *Model) GetField(name string) (Member, error) {
	for _, field := range m.Fields {
		if field.Name == name || field.Attname == name {
			return field, nil
		}
	}
	for _, field := range m.PrivateFields {
		if field.Name == name {
			return field, nil
		}
	}
	for _, rel := range m.ConcreteModel().Relations {
		if rel.Name == name {
			return rel, nil
		}
	}
	return nil, &FieldDoesNotExist{Model: m.Name, Field: name}
}

// FieldNames returns the names accepted by GetField, sorted. Attnames that
// differ from the field name are included.
func (m *Model) FieldNames() []string {
	var names []string
	for _, member := range m.GetFields() {
		names = append(names, member.FieldName())
		if field, ok := member.(*Field); ok && field.Attname != field.Name {
			names = append(names, field.Attname)
		}
	}
	sort.Strings(names)
	return names
}

// PK returns the first primary key field, or nil.
func (m *Model) PK() *Field {
	for _, field := range m.Fields {
		if field.PrimaryKey && field.IsConcrete() {
			return field
		}
	}
	return nil
}

// HasField returns true if the model has a member with the given name
func (m *Model) HasField(name string) bool {
	_, err := m.GetField(name)
	return err == nil
}
