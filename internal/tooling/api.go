// Package tooling provides a programmatic API over the type engine for the
// command line and the JSON-RPC server. It owns the booted registry, the
// declaration database and the diagnostic session, and is safe for
// concurrent use.
package tooling

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/bootstrap"
	"github.com/conduit-lang/ormtypes/internal/checker"
	"github.com/conduit-lang/ormtypes/internal/orm/schema"
	"github.com/conduit-lang/ormtypes/internal/ormctx"
	"github.com/conduit-lang/ormtypes/internal/stubs"
	"github.com/conduit-lang/ormtypes/internal/types"
)

var (
	// ErrNotBooted is returned by queries issued before Boot succeeded
	ErrNotBooted = errors.New("no settings module booted")

	// ErrModelNotFound is returned when a model name matches nothing in the registry
	ErrModelNotFound = errors.New("model not found")

	// ErrAppNotFound is returned when an app name or label matches no installed app
	ErrAppNotFound = errors.New("app not installed")
)

// API provides thread-safe access to the type engine
type API struct {
	logger *zap.Logger

	mu       sync.RWMutex
	ctx      *ormctx.Context
	db       *stubs.Database
	session  *checker.Session
	settings string
}

// NewAPI creates an API with nothing booted
func NewAPI(logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{logger: logger}
}

// Boot initializes the framework for a settings module and replaces any
// previously booted registry. Diagnostics of the previous session are dropped.
func (a *API) Boot(settingsModule string, opts ...bootstrap.Option) error {
	ctx, err := ormctx.Open(settingsModule, a.logger, opts...)
	if err != nil {
		return err
	}

	db, err := stubs.Load()
	if err != nil {
		return fmt.Errorf("failed to load declarations: %w", err)
	}
	if err := db.AddModels(ctx.Apps); err != nil {
		return fmt.Errorf("failed to declare models: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx = ctx
	a.db = db
	a.session = checker.NewSession(db, a.logger)
	a.settings = settingsModule

	a.logger.Info("booted settings module",
		zap.String("settings", settingsModule),
		zap.String("session", ctx.ID.String()),
		zap.Int("models", len(ctx.Apps.GetModels(true, true))))
	return nil
}

// Ready reports whether a settings module is booted
func (a *API) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctx != nil
}

// SettingsModule returns the booted settings locator
func (a *API) SettingsModule() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// Context returns the booted engine context
func (a *API) Context() (*ormctx.Context, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ctx == nil {
		return nil, ErrNotBooted
	}
	return a.ctx, nil
}

func (a *API) state() (*ormctx.Context, *stubs.Database, *checker.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ctx == nil {
		return nil, nil, nil, ErrNotBooted
	}
	return a.ctx, a.db, a.session, nil
}

// ModelSummary describes a registered model
type ModelSummary struct {
	Label    string `json:"label" yaml:"label"`
	Fullname string `json:"fullname" yaml:"fullname"`
	Kind     string `json:"kind" yaml:"kind"`
}

// Model kinds
const (
	KindConcrete = "concrete"
	KindAbstract = "abstract"
	KindProxy    = "proxy"
	KindThrough  = "auto-created"
)

// Models lists every registered model and model ancestor, sorted by fullname
func (a *API) Models() ([]ModelSummary, error) {
	ctx, _, _, err := a.state()
	if err != nil {
		return nil, err
	}

	models := ctx.AllRegisteredModels()
	out := make([]ModelSummary, 0, len(models))
	for _, model := range models {
		out = append(out, summarize(model))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fullname < out[j].Fullname })
	return out, nil
}

// AppModels lists the models declared by one installed app in declaration
// order. app is the app name ("django.contrib.auth") or its label ("auth").
func (a *API) AppModels(app string) ([]ModelSummary, error) {
	ctx, _, _, err := a.state()
	if err != nil {
		return nil, err
	}

	for _, cfg := range ctx.Apps.AppConfigs() {
		if cfg.Name != app && cfg.Label != app {
			continue
		}
		out := make([]ModelSummary, 0, len(cfg.Models))
		for _, model := range cfg.Models {
			out = append(out, summarize(model))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAppNotFound, app)
}

func summarize(model *schema.Model) ModelSummary {
	return ModelSummary{
		Label:    model.Label(),
		Fullname: model.Fullname(),
		Kind:     modelKind(model),
	}
}

func modelKind(model *schema.Model) string {
	switch {
	case model.Abstract:
		return KindAbstract
	case model.Proxy:
		return KindProxy
	case model.AutoCreated:
		return KindThrough
	}
	return KindConcrete
}

// FindModel resolves an "app_label.Model" label or a fully-qualified class name
func (a *API) FindModel(name string) (*schema.Model, error) {
	ctx, _, _, err := a.state()
	if err != nil {
		return nil, err
	}
	return findModel(ctx, name)
}

func findModel(ctx *ormctx.Context, name string) (*schema.Model, error) {
	if model := ctx.ModelByFullName(name); model != nil {
		return model, nil
	}
	if strings.Count(name, ".") == 1 {
		if model, err := ctx.Apps.GetModel(name); err == nil {
			return model, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
}

// ModelNames returns every label and fullname FindModel accepts
func (a *API) ModelNames() []string {
	models, err := a.Models()
	if err != nil {
		return nil
	}
	names := make([]string, 0, 2*len(models))
	for _, model := range models {
		names = append(names, model.Label, model.Fullname)
	}
	return names
}

// FieldSummary describes one member of a model's field list
type FieldSummary struct {
	Name     string `json:"name" yaml:"name"`
	Attname  string `json:"attname,omitempty" yaml:"attname,omitempty"`
	Class    string `json:"class" yaml:"class"`
	Null     bool   `json:"null" yaml:"null"`
	Relation bool   `json:"relation" yaml:"relation"`
	GetType  string `json:"get_type" yaml:"get_type"`
}

// Fields lists the members of a model with the type read from each
func (a *API) Fields(modelName string, method ormctx.Method) ([]FieldSummary, error) {
	ctx, _, session, err := a.state()
	if err != nil {
		return nil, err
	}
	model, err := findModel(ctx, modelName)
	if err != nil {
		return nil, err
	}

	modelInfo, _ := session.LookupTypeInfo(model.Fullname())
	var out []FieldSummary
	for _, member := range model.GetFields() {
		summary := FieldSummary{
			Name:     member.FieldName(),
			Class:    member.TypeClass().Fullname,
			Null:     member.Nullable(),
			Relation: member.IsRelation(),
		}
		if field, ok := member.(*schema.Field); ok {
			summary.Attname = field.Attname
		}

		typ, err := ctx.GetType(session, modelInfo, member, method)
		if err != nil {
			a.logger.Debug("field type degraded", zap.String("field", member.FieldName()), zap.Error(err))
			typ = types.NewAny(types.FromError)
		}
		summary.GetType = typ.String()
		out = append(out, summary)
	}
	return out, nil
}

// TypedName pairs an attribute name with its type
type TypedName struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// ExpectedTypes returns the accepted type per attribute for a model call,
// sorted by attribute name
func (a *API) ExpectedTypes(modelName string, method ormctx.Method) ([]TypedName, error) {
	ctx, _, session, err := a.state()
	if err != nil {
		return nil, err
	}
	model, err := findModel(ctx, modelName)
	if err != nil {
		return nil, err
	}

	expected := ctx.ExpectedTypes(session, model, method)
	return sortedTypes(expected), nil
}

func sortedTypes(m map[string]types.Type) []TypedName {
	out := make([]TypedName, 0, len(m))
	for name, typ := range m {
		out = append(out, TypedName{Name: name, Type: typ.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
