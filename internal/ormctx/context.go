// Package ormctx computes the static types of ORM model fields for the host
// type checker. A Context wraps one booted app registry and exposes model
// introspection, lookup resolution and the type resolution engine.
package ormctx

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/bootstrap"
	"github.com/conduit-lang/ormtypes/internal/orm/conf"
	"github.com/conduit-lang/ormtypes/internal/orm/schema"
)

var (
	// ErrUnregisteredModel is returned when a relation target is not in the registry
	ErrUnregisteredModel = errors.New("unregistered model")

	// ErrLookupsAreUnsupported is returned when a lookup with operator segments
	// is passed where only a field path is accepted
	ErrLookupsAreUnsupported = errors.New("lookups are unsupported")
)

const contentTypesApp = "django.contrib.contenttypes"
const authApp = "django.contrib.auth"

// Option configures a Context
type Option func(*Context)

// WithLogger sets the context logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Context is the type engine's view of one booted registry
type Context struct {
	ID       uuid.UUID
	Apps     *schema.Apps
	Settings *conf.Settings

	logger *zap.Logger

	modulesOnce  sync.Once
	modelModules map[string]map[string]*schema.Model

	allModelsOnce sync.Once
	allModels     []*schema.Model

	labelsOnce sync.Once
	labels     map[string]string
}

// New wraps a booted registry
func New(reg *bootstrap.Registry, opts ...Option) *Context {
	c := &Context{
		ID:       reg.ID,
		Apps:     reg.Apps,
		Settings: reg.Settings,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("session", c.ID.String()))
	return c
}

// Open boots the settings module and wraps the resulting registry
func Open(settingsModule string, logger *zap.Logger, opts ...bootstrap.Option) (*Context, error) {
	if logger != nil {
		opts = append([]bootstrap.Option{bootstrap.WithLogger(logger)}, opts...)
	}
	reg, err := bootstrap.Initialize(settingsModule, opts...)
	if err != nil {
		return nil, err
	}
	return New(reg, WithLogger(logger)), nil
}

// ModelModules indexes every model by declaring module and class name.
// Abstract ancestors are included.
func (c *Context) ModelModules() map[string]map[string]*schema.Model {
	c.modulesOnce.Do(func() {
		modules := make(map[string]map[string]*schema.Model)
		add := func(model *schema.Model) {
			byName, ok := modules[model.Module]
			if !ok {
				byName = make(map[string]*schema.Model)
				modules[model.Module] = byName
			}
			byName[model.Name] = model
		}
		for _, model := range c.Apps.GetModels(true, true) {
			add(model)
			for _, ancestor := range model.MRO()[1:] {
				if ancestor.Abstract {
					add(ancestor)
				}
			}
		}
		c.modelModules = modules
	})
	return c.modelModules
}

// ModelByFullName returns the model with the given fully-qualified class name, or nil
func (c *Context) ModelByFullName(fullname string) *schema.Model {
	idx := strings.LastIndex(fullname, ".")
	if idx < 0 {
		return nil
	}
	return c.ModelModules()[fullname[:idx]][fullname[idx+1:]]
}

// AllRegisteredModels returns every registered model and every model ancestor
func (c *Context) AllRegisteredModels() []*schema.Model {
	c.allModelsOnce.Do(func() {
		seen := make(map[*schema.Model]bool)
		for _, model := range c.Apps.GetModels(true, true) {
			for _, ancestor := range model.MRO() {
				if !seen[ancestor] {
					seen[ancestor] = true
					c.allModels = append(c.allModels, ancestor)
				}
			}
		}
	})
	return c.allModels
}

// FullnamesByLabel maps "app_label.ModelName" to the fully-qualified class name
func (c *Context) FullnamesByLabel() map[string]string {
	c.labelsOnce.Do(func() {
		c.labels = make(map[string]string)
		for _, model := range c.AllRegisteredModels() {
			c.labels[model.Label()] = model.Fullname()
		}
	})
	return c.labels
}

// IsContribAuthInstalled reports whether the auth app is installed
func (c *Context) IsContribAuthInstalled() bool {
	return c.Apps.IsInstalled(authApp)
}

// Fields yields the model's concrete fields, relations included
func (c *Context) Fields(model *schema.Model) iter.Seq[*schema.Field] {
	return func(yield func(*schema.Field) bool) {
		for _, field := range model.Fields {
			if !field.IsConcrete() {
				continue
			}
			if !yield(field) {
				return
			}
		}
	}
}

// ForeignKeys yields the model's foreign keys
func (c *Context) ForeignKeys(model *schema.Model) iter.Seq[*schema.Field] {
	return func(yield func(*schema.Field) bool) {
		for field := range c.Fields(model) {
			if field.IsForeignKey() && !yield(field) {
				return
			}
		}
	}
}

// RelatedFields yields the model's forward relations
func (c *Context) RelatedFields(model *schema.Model) iter.Seq[*schema.Field] {
	return func(yield func(*schema.Field) bool) {
		for field := range c.Fields(model) {
			if field.IsRelatedField() && !yield(field) {
				return
			}
		}
	}
}

// Relations yields the reverse relations pointing at the model
func (c *Context) Relations(model *schema.Model) iter.Seq[*schema.ForeignObjectRel] {
	return func(yield func(*schema.ForeignObjectRel) bool) {
		for _, member := range model.GetFields() {
			rel, ok := member.(*schema.ForeignObjectRel)
			if ok && !yield(rel) {
				return
			}
		}
	}
}

// PrimaryKey returns the first field flagged as primary key
func (c *Context) PrimaryKey(model *schema.Model) (*schema.Field, error) {
	for field := range c.Fields(model) {
		if field.PrimaryKey {
			return field, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", schema.ErrNoPrimaryKey, model.Label())
}

// RelatedTargetField returns the field of relatedModel that fk points at: its
// to_field, or the primary key. A to_field that is not a concrete field is
// reported as absent.
func (c *Context) RelatedTargetField(relatedModel *schema.Model, fk *schema.Field) (*schema.Field, bool) {
	if fk.Remote != nil && fk.Remote.ToField != "" {
		member, err := relatedModel.GetField(fk.Remote.ToField)
		if err != nil {
			return nil, false
		}
		field, ok := member.(*schema.Field)
		if !ok || !field.IsConcrete() {
			return nil, false
		}
		return field, true
	}
	pk, err := c.PrimaryKey(relatedModel)
	if err != nil {
		return nil, false
	}
	return pk, true
}

// RelatedModel resolves the model a forward or reverse relation points at
func (c *Context) RelatedModel(member schema.Member) (*schema.Model, error) {
	switch m := member.(type) {
	case *schema.ForeignObjectRel:
		return m.Field.Model, nil
	case *schema.Field:
		if m.Remote == nil {
			return nil, fmt.Errorf("%w: %s.%s is not a relation", ErrUnregisteredModel, m.Model.Label(), m.Name)
		}
		if m.Remote.Model != nil {
			return m.Remote.Model, nil
		}
		target := m.Remote.Target
		switch target.Kind {
		case schema.TargetSelf:
			return m.Model, nil
		case schema.TargetLocal:
			if related := c.ModelByFullName(m.Model.Module + "." + target.Name); related != nil {
				return related, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrUnregisteredModel, target)
		default:
			related, err := c.Apps.GetModel(target.String())
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrUnregisteredModel, target, err)
			}
			return related, nil
		}
	default:
		return nil, fmt.Errorf("%w: unsupported member %T", ErrUnregisteredModel, member)
	}
}
