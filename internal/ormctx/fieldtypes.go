package ormctx

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/checker"
	"github.com/conduit-lang/ormtypes/internal/orm/query"
	"github.com/conduit-lang/ormtypes/internal/orm/schema"
	"github.com/conduit-lang/ormtypes/internal/stubs"
	"github.com/conduit-lang/ormtypes/internal/types"
)

// Method names the call a field type is computed for
type Method string

const (
	// MethodNone is attribute access outside any known call
	MethodNone Method = ""
	// MethodInit is the model constructor
	MethodInit Method = "__init__"
	// MethodCreate is Manager.create
	MethodCreate Method = "create"
	// MethodValues is QuerySet.values
	MethodValues Method = "values"
	// MethodValuesList is QuerySet.values_list
	MethodValuesList Method = "values_list"
)

// IsProjection reports whether the method returns raw column values
func (m Method) IsProjection() bool {
	return m == MethodValues || m == MethodValuesList
}

// Nullability reports whether None is accepted for the member under method
func (c *Context) Nullability(member schema.Member, method Method) bool {
	if method.IsProjection() {
		return member.Nullable()
	}

	nullable := member.Nullable()
	field, ok := member.(*schema.Field)
	if !ok {
		return nullable
	}

	if !nullable && field.Class.Is(schema.ClassCharField) && field.Blank {
		return true
	}
	if method == MethodInit && (field.PrimaryKey || field.IsForeignKey()) {
		return true
	}
	if method == MethodCreate && field.Class.IsAuto() {
		return true
	}
	if field.HasDefault {
		return true
	}
	return nullable
}

// SetType returns the type accepted when assigning the field under method.
// Foreign keys take the set type of the field they point at.
func (c *Context) SetType(api checker.API, field *schema.Field, method Method) types.Type {
	target := field
	if field.IsForeignKey() {
		resolved, err := field.TargetField()
		if err != nil {
			c.logger.Debug("foreign key target unresolved",
				zap.String("field", field.Model.Label()+"."+field.Name),
				zap.Error(err))
			return types.NewAny(types.FromError)
		}
		target = resolved
	}

	info, ok := api.LookupTypeInfo(target.Class.Fullname)
	if !ok {
		return types.NewAny(types.FromError)
	}

	setType := stubs.GetPrivateDescriptorType(info, stubs.SetTypeAttr, c.Nullability(field, method))
	if target.Class.Is(schema.ClassArrayField) && target.BaseField != nil {
		setType = types.ConvertAnyToType(setType, c.SetType(api, target.BaseField, method))
	}
	return setType
}

// GetType returns the type read from the field under method. An explicit
// annotation on the model class takes precedence over the field class.
func (c *Context) GetType(api checker.API, modelInfo *types.TypeInfo, member schema.Member, method Method) (types.Type, error) {
	if field, ok := member.(*schema.Field); ok && modelInfo != nil {
		if annotation, ok := explicitAnnotation(modelInfo, field.Attname); ok {
			return annotation.Args[1], nil
		}
	}

	info, ok := api.LookupTypeInfo(member.TypeClass().Fullname)
	if !ok {
		return types.NewAny(types.Unannotated), nil
	}

	field, ok := member.(*schema.Field)
	if !ok || !field.IsRelatedField() {
		return stubs.GetPrivateDescriptorType(info, stubs.GetTypeAttr, c.Nullability(member, method)), nil
	}

	related, err := c.RelatedModel(field)
	if err != nil {
		return nil, err
	}
	if method.IsProjection() {
		pk, err := c.PrimaryKey(related)
		if err != nil {
			return nil, err
		}
		relatedInfo, _ := api.LookupTypeInfo(related.Fullname())
		return c.GetType(api, relatedInfo, pk, method)
	}

	relatedInfo, ok := api.LookupTypeInfo(related.Fullname())
	if !ok {
		return types.NewAny(types.Unannotated), nil
	}
	return types.NewInstance(relatedInfo), nil
}

// ExpectedTypes returns the types accepted for each attribute of model when
// calling method, keyed by attribute name. "pk" is included for concrete models.
// Foreign keys get an entry under both the field name and the attname.
func (c *Context) ExpectedTypes(api checker.API, model *schema.Model, method Method) map[string]types.Type {
	expected := make(map[string]types.Type)
	contentTypesInstalled := c.Apps.IsInstalled(contentTypesApp)

	if !model.Abstract {
		if pk, err := c.PrimaryKey(model); err == nil {
			expected[query.PKAlias] = c.SetType(api, pk, method)
		} else {
			c.logger.Debug("no primary key", zap.String("model", model.Label()))
		}
	}

	modelInfo, _ := api.LookupTypeInfo(model.Fullname())

	for _, member := range model.GetFields() {
		field, ok := member.(*schema.Field)
		if !ok {
			continue
		}

		if field.Class.Is(schema.ClassGenericForeignKey) {
			if !contentTypesInstalled {
				continue
			}
			if info, ok := api.LookupTypeInfo(field.Class.Fullname); ok {
				expected[field.Name] = stubs.GetPrivateDescriptorType(info, stubs.SetTypeAttr, true)
			} else {
				expected[field.Name] = types.NewAny(types.Unannotated)
			}
			continue
		}

		if model.Abstract && field.IsRelatedField() && field.Remote.Target.Kind == schema.TargetSelf {
			continue
		}

		if annotation, ok := explicitAnnotation(modelInfo, field.Attname); ok {
			expected[field.Attname] = annotation.Args[0]
		} else {
			expected[field.Attname] = c.SetType(api, field, method)
		}

		if field.IsForeignKey() {
			expected[field.Name] = c.foreignKeySetType(api, field, method, expected[field.Attname])
		}
	}
	return expected
}

// foreignKeySetType is the type accepted under a foreign key's own name:
// the related instance or the value accepted for its attname.
func (c *Context) foreignKeySetType(api checker.API, field *schema.Field, method Method, attnameType types.Type) types.Type {
	fkInfo, ok := api.LookupTypeInfo(field.Class.Fullname)
	if !ok {
		return types.NewAny(types.Unannotated)
	}

	related, err := c.RelatedModel(field)
	if err != nil {
		c.logger.Debug("unregistered related model",
			zap.String("field", field.Model.Label()+"."+field.Name),
			zap.Error(err))
		return types.NewAny(types.FromError)
	}
	related = related.ConcreteModel()

	relatedInfo, ok := api.LookupTypeInfo(related.Fullname())
	if !ok {
		return types.NewAny(types.Unannotated)
	}

	fkSetType := stubs.GetPrivateDescriptorType(fkInfo, stubs.SetTypeAttr, c.Nullability(field, method))
	modelSetType := types.ConvertAnyToType(fkSetType, types.NewInstance(relatedInfo))
	if isAny(attnameType) {
		return modelSetType
	}
	return types.MakeUnion(modelSetType, attnameType)
}

// LookupExactType returns the operand type of an equality lookup on member.
// Relations accept the related instance, its primary key or None.
func (c *Context) LookupExactType(api checker.API, member schema.Member) types.Type {
	if isRelationMember(member) {
		related, err := c.RelatedModel(member)
		if err != nil {
			return types.NewAny(types.FromError)
		}
		pk, err := c.PrimaryKey(related)
		if err != nil {
			return types.NewAny(types.FromError)
		}
		relatedInfo, ok := api.LookupTypeInfo(related.Fullname())
		if !ok {
			return types.NewAny(types.Explicit)
		}
		pkType := c.SetType(api, pk, MethodNone)
		return types.MakeOptional(types.MakeUnion(types.NewInstance(relatedInfo), pkType))
	}

	info, ok := api.LookupTypeInfo(member.TypeClass().Fullname)
	if !ok {
		return types.NewAny(types.Explicit)
	}
	return stubs.GetPrivateDescriptorType(info, stubs.LookupExactTypeAttr, member.Nullable())
}

// ResolveLookupExpectedType returns the operand type a filter keyword accepts.
// Lookups the query compiler rejects are reported through ctx unless they name
// an annotation carried by instance.
func (c *Context) ResolveLookupExpectedType(ctx checker.MethodContext, model *schema.Model, lookup string, instance *types.Instance) types.Type {
	solved, err := c.SolveLookupType(model, lookup)
	if err != nil {
		var fieldErr *query.FieldError
		if !errors.As(err, &fieldErr) {
			c.logger.Debug("lookup degraded", zap.String("model", model.Label()), zap.String("lookup", lookup), zap.Error(err))
			return types.NewAny(types.FromError)
		}

		var extra *types.ExtraAttrs
		if instance != nil {
			extra = instance.ExtraAttrs
		}
		if !extra.Empty() && instance.Info.IsAnnotatedModel {
			name, _, _ := strings.Cut(lookup, query.LookupSep)
			if typ, ok := extra.Get(name); ok {
				return typ
			}
		}

		message := fieldErr.Message
		if !extra.Empty() {
			message += ", " + strings.Join(extra.Names, ", ")
		}
		ctx.API.Fail(message, ctx.Context)
		return types.NewAny(types.FromError)
	}
	if solved == nil {
		return types.NewAny(types.ImplementationArtifact)
	}
	if solved.Expression {
		return types.NewAny(types.Explicit)
	}

	member, _, err := c.ResolveFieldFromParts(solved.FieldParts, model)
	if err != nil || member == nil {
		c.logger.Debug("lookup field unresolved", zap.String("model", model.Label()), zap.String("lookup", lookup), zap.Error(err))
		return types.NewAny(types.FromError)
	}

	var lookupClass *schema.LookupClass
	if len(solved.LookupParts) > 0 {
		name := solved.LookupParts[len(solved.LookupParts)-1]
		found, ok := member.GetLookup(name)
		if !ok {
			return types.NewAny(types.Explicit)
		}
		lookupClass = found
	}

	if lookupClass == nil || lookupClass.Is(schema.LookupExact) {
		return c.LookupExactType(ctx.API, member)
	}

	lookupInfo, ok := ctx.API.LookupTypeInfo(lookupClass.Fullname)
	if !ok {
		return types.NewAny(types.Explicit)
	}
	for _, base := range lookupInfo.IterBases() {
		if len(base.Args) == 0 {
			continue
		}
		operand, ok := base.Args[0].(*types.Instance)
		if !ok {
			continue
		}
		if operand.Fullname() != stubs.FieldFullname {
			return operand
		}
		fieldInfo, ok := ctx.API.LookupTypeInfo(member.TypeClass().Fullname)
		if !ok {
			return types.NewAny(types.Explicit)
		}
		return stubs.GetPrivateDescriptorType(fieldInfo, stubs.GetTypeAttr, member.Nullable())
	}
	return types.NewAny(types.Explicit)
}

// ResolveFExpressionType returns the type of an F() expression
func (c *Context) ResolveFExpressionType() types.Type {
	return types.NewAny(types.Explicit)
}

// explicitAnnotation returns the Field[set, get] annotation declared for an
// attribute on the model class.
func explicitAnnotation(info *types.TypeInfo, name string) (*types.Instance, bool) {
	if info == nil {
		return nil, false
	}
	typ, ok := info.Get(name)
	if !ok || typ == nil {
		return nil, false
	}
	instance, ok := typ.(*types.Instance)
	if !ok || len(instance.Args) != 2 {
		return nil, false
	}
	return instance, true
}

func isRelationMember(member schema.Member) bool {
	switch m := member.(type) {
	case *schema.ForeignObjectRel:
		return true
	case *schema.Field:
		return m.IsRelatedField()
	}
	return false
}

func isAny(typ types.Type) bool {
	_, ok := typ.(*types.AnyType)
	return ok
}
