// Package types implements the static type objects exchanged with the host type checker.
// Types are immutable values: every transformation returns a new Type.
package types

import (
	"sort"
	"strings"
)

// Type represents a static type produced or consumed by the resolution engine.
type Type interface {
	// String returns the human-readable representation of the type
	String() string

	// Equals checks if two types are structurally equal
	Equals(other Type) bool
}

// TypeOfAny records why an Any type was produced.
type TypeOfAny int

const (
	// Explicit is an Any the engine deliberately chose (unconstrained).
	Explicit TypeOfAny = iota
	// FromError is an Any that stands in for an unresolvable type and suppresses
	// cascading diagnostics.
	FromError
	// Unannotated is an Any produced because a declaration carries no annotation.
	Unannotated
	// ImplementationArtifact is an Any for inputs the engine does not classify.
	ImplementationArtifact
	// Special is an Any written literally in a declaration.
	Special
)

// String returns the string representation of the Any reason
func (k TypeOfAny) String() string {
	switch k {
	case Explicit:
		return "explicit"
	case FromError:
		return "from_error"
	case Unannotated:
		return "unannotated"
	case ImplementationArtifact:
		return "implementation_artifact"
	case Special:
		return "special"
	default:
		return "unknown"
	}
}

// AnyType is the dynamic type.
type AnyType struct {
	Of TypeOfAny
}

// NewAny creates an Any type with the given reason.
func NewAny(of TypeOfAny) *AnyType {
	return &AnyType{Of: of}
}

func (a *AnyType) String() string {
	return "Any"
}

// Equals reports whether other is any Any type. The reason is not part of identity.
func (a *AnyType) Equals(other Type) bool {
	_, ok := other.(*AnyType)
	return ok
}

// NoneType is the type of the absent value.
type NoneType struct{}

// None is the shared NoneType value.
var None = &NoneType{}

func (n *NoneType) String() string {
	return "None"
}

// Equals checks if other is the NoneType
func (n *NoneType) Equals(other Type) bool {
	_, ok := other.(*NoneType)
	return ok
}

// ExtraAttrs holds attributes attached to an instance by upstream projection or
// annotation operations. Names keeps insertion order.
type ExtraAttrs struct {
	Names []string
	Attrs map[string]Type
}

// NewExtraAttrs creates an empty attribute set.
func NewExtraAttrs() *ExtraAttrs {
	return &ExtraAttrs{Attrs: make(map[string]Type)}
}

// Set records an attribute, keeping first-insertion order.
func (e *ExtraAttrs) Set(name string, typ Type) {
	if _, exists := e.Attrs[name]; !exists {
		e.Names = append(e.Names, name)
	}
	e.Attrs[name] = typ
}

// Get returns the type recorded for name.
func (e *ExtraAttrs) Get(name string) (Type, bool) {
	if e == nil {
		return nil, false
	}
	typ, ok := e.Attrs[name]
	return typ, ok
}

// Empty reports whether no attributes are recorded.
func (e *ExtraAttrs) Empty() bool {
	return e == nil || len(e.Names) == 0
}

// Instance is a (possibly parameterized) class type.
type Instance struct {
	Info       *TypeInfo
	Args       []Type
	ExtraAttrs *ExtraAttrs
}

// NewInstance creates an instance of info parameterized by args.
func NewInstance(info *TypeInfo, args ...Type) *Instance {
	return &Instance{Info: info, Args: args}
}

// Fullname returns the fully-qualified name of the instance's class.
func (i *Instance) Fullname() string {
	if i.Info == nil {
		return ""
	}
	return i.Info.Fullname
}

func (i *Instance) String() string {
	if len(i.Args) == 0 {
		return i.Fullname()
	}
	args := make([]string, len(i.Args))
	for idx, arg := range i.Args {
		args[idx] = arg.String()
	}
	return i.Fullname() + "[" + strings.Join(args, ", ") + "]"
}

// Equals checks class identity and pairwise argument equality.
func (i *Instance) Equals(other Type) bool {
	o, ok := other.(*Instance)
	if !ok {
		return false
	}
	if i.Fullname() != o.Fullname() || len(i.Args) != len(o.Args) {
		return false
	}
	for idx := range i.Args {
		if !i.Args[idx].Equals(o.Args[idx]) {
			return false
		}
	}
	return true
}

// Reparametrize returns a copy of the instance with new arguments.
func (i *Instance) Reparametrize(args []Type) *Instance {
	return &Instance{Info: i.Info, Args: args, ExtraAttrs: i.ExtraAttrs}
}

// UnionType is a union of two or more distinct types.
type UnionType struct {
	Items []Type
}

func (u *UnionType) String() string {
	items := make([]string, len(u.Items))
	for idx, item := range u.Items {
		items[idx] = item.String()
	}
	return strings.Join(items, " | ")
}

// Equals compares unions as sets of items.
func (u *UnionType) Equals(other Type) bool {
	o, ok := other.(*UnionType)
	if !ok || len(u.Items) != len(o.Items) {
		return false
	}
	for _, item := range u.Items {
		if !containsType(o.Items, item) {
			return false
		}
	}
	return true
}

// MakeUnion builds a union from items, flattening nested unions and removing
// duplicates. A single remaining item is returned as is.
func MakeUnion(items ...Type) Type {
	flat := make([]Type, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if u, ok := item.(*UnionType); ok {
			for _, inner := range u.Items {
				if !containsType(flat, inner) {
					flat = append(flat, inner)
				}
			}
			continue
		}
		if !containsType(flat, item) {
			flat = append(flat, item)
		}
	}

	switch len(flat) {
	case 0:
		return NewAny(Special)
	case 1:
		return flat[0]
	default:
		return &UnionType{Items: flat}
	}
}

// MakeOptional returns typ | None.
func MakeOptional(typ Type) Type {
	return MakeUnion(typ, None)
}

// IsOptional reports whether typ admits None.
func IsOptional(typ Type) bool {
	switch t := typ.(type) {
	case *NoneType:
		return true
	case *UnionType:
		return containsType(t.Items, None)
	default:
		return false
	}
}

// ConvertAnyToType replaces Any items of a union, Any arguments of an instance
// or a bare Any with replacement.
func ConvertAnyToType(typ Type, replacement Type) Type {
	switch t := typ.(type) {
	case *UnionType:
		converted := make([]Type, len(t.Items))
		for idx, item := range t.Items {
			converted[idx] = ConvertAnyToType(item, replacement)
		}
		return MakeUnion(converted...)
	case *Instance:
		args := make([]Type, len(t.Args))
		for idx, arg := range t.Args {
			if _, isAny := arg.(*AnyType); isAny {
				args[idx] = replacement
			} else {
				args[idx] = arg
			}
		}
		return t.Reparametrize(args)
	case *AnyType:
		return replacement
	default:
		return typ
	}
}

func containsType(items []Type, typ Type) bool {
	for _, item := range items {
		if item.Equals(typ) {
			return true
		}
	}
	return false
}

// TypeInfo is the structural declaration of a class known to the host checker.
type TypeInfo struct {
	Fullname string
	Bases    []*Instance
	Attrs    map[string]Type

	// IsAnnotatedModel marks the synthetic model types produced by annotate().
	IsAnnotatedModel bool
}

// NewTypeInfo creates a class declaration with no bases or attributes.
func NewTypeInfo(fullname string) *TypeInfo {
	return &TypeInfo{Fullname: fullname, Attrs: make(map[string]Type)}
}

// Name returns the unqualified class name.
func (t *TypeInfo) Name() string {
	idx := strings.LastIndex(t.Fullname, ".")
	return t.Fullname[idx+1:]
}

// Get looks up an attribute along the method resolution order.
func (t *TypeInfo) Get(name string) (Type, bool) {
	for _, info := range t.MRO() {
		if typ, ok := info.Attrs[name]; ok {
			return typ, true
		}
	}
	return nil, false
}

// MRO returns the class followed by its ancestors, depth-first, each once.
func (t *TypeInfo) MRO() []*TypeInfo {
	seen := make(map[string]bool)
	var order []*TypeInfo
	var walk func(info *TypeInfo)
	walk = func(info *TypeInfo) {
		if info == nil || seen[info.Fullname] {
			return
		}
		seen[info.Fullname] = true
		order = append(order, info)
		for _, base := range info.Bases {
			walk(base.Info)
		}
	}
	walk(t)
	return order
}

// HasBase reports whether fullname is t or one of its ancestors.
func (t *TypeInfo) HasBase(fullname string) bool {
	for _, info := range t.MRO() {
		if info.Fullname == fullname {
			return true
		}
	}
	return false
}

// IterBases yields every base instance, each followed by the bases of its class.
func (t *TypeInfo) IterBases() []*Instance {
	var out []*Instance
	for _, base := range t.Bases {
		out = append(out, base)
		if base.Info != nil {
			out = append(out, base.Info.IterBases()...)
		}
	}
	return out
}

// AttrNames returns the declared attribute names in sorted order.
func (t *TypeInfo) AttrNames() []string {
	names := make([]string, 0, len(t.Attrs))
	for name := range t.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
