// Package query decomposes lookup strings the way the ORM's query compiler
// does: "author__name__icontains" becomes a field path and operator segments.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/ormtypes/internal/orm/schema"
)

// LookupSep separates the segments of a lookup string
const LookupSep = "__"

// PKAlias is the lookup name that refers to the primary key of any model
const PKAlias = "pk"

// FieldError is raised for lookups the query compiler rejects
type FieldError struct {
	Message string
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return e.Message
}

// Solved is a lookup split into its parts
type Solved struct {
	// LookupParts are the trailing operator segments
	LookupParts []string
	// FieldParts are the field path segments
	FieldParts []string
	// Expression is set when the lookup refers to a query annotation
	Expression bool
	// Annotation is the referenced annotation name
	Annotation string
}

// Query resolves lookups against one model
type Query struct {
	model       *schema.Model
	annotations []string
}

// New creates a query over a model
func New(model *schema.Model) *Query {
	return &Query{model: model}
}

// Annotate adds named expressions to the query
func (q *Query) Annotate(names ...string) *Query {
	q.annotations = append(q.annotations, names...)
	return q
}

// Model returns the query's model
func (q *Query) Model() *schema.Model {
	return q.model
}

// SolveLookupType splits a lookup into field and operator segments.
// A relation whose target is not yet resolved yields schema.ErrUnresolvedRelation.
func (q *Query) SolveLookupType(lookup string) (*Solved, error) {
	splitted := strings.Split(lookup, LookupSep)

	if annotation, rest, ok := q.refsExpression(splitted); ok {
		return &Solved{LookupParts: rest, Expression: true, Annotation: annotation}, nil
	}

	lookupParts, err := q.namesToPath(splitted)
	if err != nil {
		return nil, err
	}
	fieldParts := splitted[:len(splitted)-len(lookupParts)]

	if len(lookupParts) > 1 && len(fieldParts) == 0 {
		return nil, &FieldError{Message: fmt.Sprintf("Invalid lookup \"%s\" for model %s\".", lookup, q.model.Name)}
	}

	return &Solved{
		LookupParts: append([]string{}, lookupParts...),
		FieldParts:  append([]string{}, fieldParts...),
	}, nil
}

// refsExpression matches the longest leading run of segments naming an annotation
func (q *Query) refsExpression(parts []string) (string, []string, bool) {
	if len(q.annotations) == 0 {
		return "", nil, false
	}
	for n := len(parts); n > 0; n-- {
		candidate := strings.Join(parts[:n], LookupSep)
		for _, annotation := range q.annotations {
			if annotation == candidate {
				return candidate, append([]string(nil), parts[n:]...), true
			}
		}
	}
	return "", nil, false
}

// namesToPath walks the segments from the query's model and returns the
// segments left over once a local field or an unknown name is reached.
func (q *Query) namesToPath(names []string) ([]string, error) {
	opts := q.model
	for pos, name := range names {
		if name == PKAlias {
			if pk := opts.PK(); pk != nil {
				name = pk.Name
			}
		}

		member, err := opts.GetField(name)
		if err != nil {
			if pos == 0 {
				return nil, &FieldError{Message: fmt.Sprintf(
					"Cannot resolve keyword '%s' into field. Choices are: %s",
					name, strings.Join(q.choices(opts), ", "))}
			}
			return names[pos:], nil
		}

		if !member.IsRelation() {
			return names[pos+1:], nil
		}

		next, err := pathTarget(member)
		if err != nil {
			return nil, err
		}
		opts = next
	}
	return nil, nil
}

// pathTarget returns the model a relation member leads to
func pathTarget(member schema.Member) (*schema.Model, error) {
	switch m := member.(type) {
	case *schema.ForeignObjectRel:
		return m.Field.Model, nil
	case *schema.Field:
		if m.Class.Is(schema.ClassGenericForeignKey) {
			return nil, &FieldError{Message: fmt.Sprintf(
				"Field '%s' does not generate an automatic reverse relation and therefore cannot be used for reverse querying. If it is a GenericForeignKey, consider adding a GenericRelation.",
				m.Name)}
		}
		if m.Remote == nil || m.Remote.Model == nil {
			return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnresolvedRelation, m.Model.Name, m.Name)
		}
		return m.Remote.Model, nil
	default:
		return nil, fmt.Errorf("unsupported member %T", member)
	}
}

func (q *Query) choices(model *schema.Model) []string {
	names := model.FieldNames()
	names = append(names, q.annotations...)
	sort.Strings(names)
	return names
}
