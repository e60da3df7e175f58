package ormctx

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/orm/query"
	"github.com/conduit-lang/ormtypes/internal/orm/schema"
)

// SolveLookupType splits a lookup into operator and field segments.
//
// A nil result with a nil error means the lookup cannot be classified, for
// instance a "pk" lookup on a model without a primary key. A *query.FieldError
// is returned for lookups the query compiler rejects.
func (c *Context) SolveLookupType(model *schema.Model, lookup string) (*query.Solved, error) {
	if lookup == query.PKAlias || strings.HasPrefix(lookup, query.PKAlias+query.LookupSep) {
		if _, err := c.PrimaryKey(model); err != nil {
			return nil, nil
		}
	}

	solved, err := query.New(model).SolveLookupType(lookup)
	if err == nil {
		return solved, nil
	}
	if !errors.Is(err, schema.ErrUnresolvedRelation) {
		return nil, err
	}

	c.logger.Debug("resolving lookup manually",
		zap.String("model", model.Label()),
		zap.String("lookup", lookup),
		zap.Error(err))
	return c.solveLookupManually(model, lookup)
}

// solveLookupManually walks the lookup one segment at a time. Relations whose
// target is still a string are resolved through the registry.
func (c *Context) solveLookupManually(model *schema.Model, lookup string) (*query.Solved, error) {
	part, rest, hasRest := strings.Cut(lookup, query.LookupSep)

	member, err := model.GetField(part)
	if err != nil {
		return nil, nil
	}
	if !hasRest {
		return &query.Solved{LookupParts: []string{}, FieldParts: []string{part}}, nil
	}
	if !member.IsRelation() {
		return nil, nil
	}

	related, err := c.RelatedModel(member)
	if err != nil {
		return nil, err
	}
	solved, err := c.SolveLookupType(related, rest)
	if err != nil || solved == nil {
		return nil, err
	}
	solved.FieldParts = append([]string{part}, solved.FieldParts...)
	return solved, nil
}

// ResolveFieldFromParts walks field segments from model and returns the last
// member and the model it belongs to. The segments must not contain operators.
func (c *Context) ResolveFieldFromParts(parts []string, model *schema.Model) (schema.Member, *schema.Model, error) {
	current := model
	var member schema.Member
	for _, part := range parts {
		if part == query.PKAlias {
			pk, err := c.PrimaryKey(current)
			if err != nil {
				return nil, nil, err
			}
			member = pk
			continue
		}

		found, err := current.GetField(part)
		if err != nil {
			return nil, nil, err
		}
		member = found

		switch m := found.(type) {
		case *schema.Field:
			if !m.IsRelatedField() {
				continue
			}
			related, err := c.RelatedModel(m)
			if err != nil {
				return nil, nil, err
			}
			current = related
			if part == related.ModelName()+"_id" {
				pk, err := c.PrimaryKey(related)
				if err != nil {
					return nil, nil, err
				}
				member = pk
			}
		case *schema.ForeignObjectRel:
			related, err := c.RelatedModel(m)
			if err != nil {
				return nil, nil, err
			}
			current = related
		}
	}
	return member, current, nil
}

// ResolveLookupIntoField resolves a pure field path. A nil member means the
// lookup could not be classified. Lookups carrying operator segments return
// ErrLookupsAreUnsupported.
func (c *Context) ResolveLookupIntoField(model *schema.Model, lookup string) (schema.Member, *schema.Model, error) {
	solved, err := c.SolveLookupType(model, lookup)
	if err != nil {
		return nil, nil, err
	}
	if solved == nil {
		return nil, model, nil
	}
	if len(solved.LookupParts) > 0 {
		return nil, nil, fmt.Errorf("%w: %q has operator segments %v", ErrLookupsAreUnsupported, lookup, solved.LookupParts)
	}
	return c.ResolveFieldFromParts(solved.FieldParts, model)
}
