// Package schema models the ORM framework's application registry: installed apps,
// model classes, their fields, forward and reverse relations.
package schema

import (
	"fmt"
	"strings"
	"sync"
)

// AppConfig describes one installed app.
type AppConfig struct {
	Name   string
	Label  string
	Module string
	// Models lists every declared model of the app, abstract ones included.
	Models []*Model
}

// AppsOption configures an Apps registry.
type AppsOption func(*Apps)

// WithDefaultAutoField sets the class used for implicit primary keys.
func WithDefaultAutoField(cls *FieldClass) AppsOption {
	return func(a *Apps) {
		if cls != nil {
			a.defaultAutoField = cls
		}
	}
}

// WithSwappableSettings maps swappable setting names (AUTH_USER_MODEL) to
// their configured labels.
func WithSwappableSettings(settings map[string]string) AppsOption {
	return func(a *Apps) {
		for name, value := range settings {
			a.swappable[name] = value
		}
	}
}

// Apps is the registry of installed apps and their models.
type Apps struct {
	source           DeclarationSource
	defaultAutoField *FieldClass
	swappable        map[string]string

	configs   []*AppConfig
	byLabel   map[string]*AppConfig
	allModels map[string]map[string]*Model // app label -> lowercase model name -> model
	order     []*Model                     // registered (non-abstract) models
	pending   []string
	ready     bool

	swappableCache map[string]string
	mu             sync.RWMutex
}

// NewApps creates an empty registry that reads declarations from source
func NewApps(source DeclarationSource, opts ...AppsOption) *Apps {
	a := &Apps{
		source:           source,
		defaultAutoField: ClassBigAutoField,
		swappable:        make(map[string]string),
		byLabel:          make(map[string]*AppConfig),
		allModels:        make(map[string]map[string]*Model),
		swappableCache:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ready reports whether Populate completed
func (a *Apps) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// ClearCache drops memoized lookups
func (a *Apps) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.swappableCache = make(map[string]string)
}

// Populate loads the declarations of every installed app and links the models.
// It is a no-op on a registry that is already populated.
func (a *Apps) Populate(installedApps []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ready {
		return nil
	}

	decls := make(map[*Model]*ModelDeclaration)
	var declared []*Model
	for _, appName := range installedApps {
		appDecl, err := a.source.Declarations(appName)
		if err != nil {
			return fmt.Errorf("failed to load app %s: %w", appName, err)
		}

		cfg := &AppConfig{
			Name:   appName,
			Label:  appDecl.Label,
			Module: appDecl.Module,
		}
		if cfg.Label == "" {
			cfg.Label = appName[strings.LastIndex(appName, ".")+1:]
		}
		if cfg.Module == "" {
			cfg.Module = appName + ".models"
		}
		if _, exists := a.byLabel[cfg.Label]; exists {
			return fmt.Errorf("Application labels aren't unique, duplicates: %s", cfg.Label)
		}
		a.byLabel[cfg.Label] = cfg
		a.configs = append(a.configs, cfg)

		for i := range appDecl.Models {
			modelDecl := &appDecl.Models[i]
			if modelDecl.Name == "" {
				return &DeclarationError{App: appName, Message: "model declared without a name"}
			}
			for _, existing := range cfg.Models {
				if existing.Name == modelDecl.Name {
					return &DeclarationError{App: appName, Model: modelDecl.Name, Message: "model declared twice"}
				}
			}
			model := &Model{
				Name:        modelDecl.Name,
				Module:      modelDecl.Module,
				AppLabel:    cfg.Label,
				Abstract:    modelDecl.Abstract,
				Proxy:       modelDecl.Proxy,
				Swappable:   modelDecl.Swappable,
				Annotations: modelDecl.Annotations,
			}
			if model.Module == "" {
				model.Module = cfg.Module
			}
			cfg.Models = append(cfg.Models, model)
			declared = append(declared, model)
			decls[model] = modelDecl
		}
	}

	for _, model := range declared {
		for _, ref := range decls[model].Bases {
			base, err := a.findBase(model, ref, declared)
			if err != nil {
				return err
			}
			model.Bases = append(model.Bases, base)
		}
	}

	ordered, err := NewInheritanceGraph(declared).TopologicalSort()
	if err != nil {
		return err
	}
	for _, model := range ordered {
		if err := a.buildFields(model, decls[model]); err != nil {
			return err
		}
	}

	for _, model := range declared {
		if model.Abstract {
			continue
		}
		a.register(model)
	}

	for _, model := range a.order {
		if model.Swappable == "" {
			continue
		}
		if value, ok := a.swappable[model.Swappable]; ok && !strings.EqualFold(value, model.Label()) {
			model.Swapped = value
		}
	}

	// Snapshot: through models appended below are linked on creation.
	concrete := append([]*Model(nil), a.order...)
	for _, model := range concrete {
		if model.Proxy {
			continue
		}
		a.resolveRelations(model)
	}
	for _, model := range concrete {
		if model.Proxy {
			continue
		}
		a.createThroughModels(model)
	}
	for _, model := range a.getModels(true, false) {
		if model.Proxy {
			continue
		}
		a.addReverseRelations(model)
	}

	a.ready = true
	return nil
}

// findBase resolves a base reference: a fully-qualified name, a label or a
// model name of the same app.
func (a *Apps) findBase(model *Model, ref string, declared []*Model) (*Model, error) {
	for _, candidate := range declared {
		if candidate.Fullname() == ref || candidate.Label() == ref {
			return candidate, nil
		}
	}
	if !strings.Contains(ref, ".") {
		for _, candidate := range declared {
			if candidate.AppLabel == model.AppLabel && candidate.Name == ref {
				return candidate, nil
			}
		}
	}
	return nil, &DeclarationError{App: model.AppLabel, Model: model.Name, Message: fmt.Sprintf("unknown base model %q", ref)}
}

func (a *Apps) buildFields(model *Model, decl *ModelDeclaration) error {
	if model.Proxy {
		var concrete *Model
		for _, base := range model.Bases {
			if !base.Abstract {
				concrete = base.ConcreteModel()
				break
			}
		}
		if concrete == nil {
			return &DeclarationError{App: model.AppLabel, Model: model.Name, Message: "proxy model has no non-abstract model base class"}
		}
		if len(decl.Fields) > 0 {
			return &DeclarationError{App: model.AppLabel, Model: model.Name, Message: "proxy model contains model fields"}
		}
		model.ProxyFor = concrete
		model.Fields = append([]*Field(nil), concrete.Fields...)
		model.PrivateFields = append([]*Field(nil), concrete.PrivateFields...)
		return nil
	}

	for _, base := range model.Bases {
		if !base.Abstract {
			return &DeclarationError{App: model.AppLabel, Model: model.Name, Message: fmt.Sprintf("multi-table inheritance from %s is not supported", base.Label())}
		}
		for _, field := range base.Fields {
			model.addField(field.clone(model))
		}
		for _, field := range base.PrivateFields {
			model.addPrivateField(field.clone(model))
		}
	}

	for i := range decl.Fields {
		field, err := a.newField(model, &decl.Fields[i], "")
		if err != nil {
			return err
		}
		if field.IsConcrete() {
			model.addField(field)
		} else {
			model.addPrivateField(field)
		}
	}

	if !model.Abstract && model.PK() == nil {
		if model.HasField("id") {
			return &DeclarationError{App: model.AppLabel, Model: model.Name, Message: "'id' can only be used as a field name if the field also sets 'primary_key=True'"}
		}
		id := &Field{
			Name:        "id",
			Attname:     "id",
			Column:      "id",
			Class:       a.defaultAutoField,
			PrimaryKey:  true,
			AutoCreated: true,
			Model:       model,
		}
		model.Fields = append([]*Field{id}, model.Fields...)
	}
	return nil
}

// addField appends a field, replacing an inherited field of the same name in place
func (m *Model) addField(field *Field) {
	for i, existing := range m.Fields {
		if existing.Name == field.Name {
			m.Fields[i] = field
			return
		}
	}
	m.Fields = append(m.Fields, field)
}

func (m *Model) addPrivateField(field *Field) {
	for i, existing := range m.PrivateFields {
		if existing.Name == field.Name {
			m.PrivateFields[i] = field
			return
		}
	}
	m.PrivateFields = append(m.PrivateFields, field)
}

func (a *Apps) newField(model *Model, decl *FieldDeclaration, defaultName string) (*Field, error) {
	name := decl.Name
	if name == "" {
		name = defaultName
	}
	if name == "" {
		return nil, &DeclarationError{App: model.AppLabel, Model: model.Name, Message: "field declared without a name"}
	}
	if decl.Class == "" {
		return nil, &DeclarationError{App: model.AppLabel, Model: model.Name, Field: name, Message: "field declared without a class"}
	}
	cls, ok := ClassByName(decl.Class)
	if !ok {
		return nil, &DeclarationError{App: model.AppLabel, Model: model.Name, Field: name, Message: fmt.Sprintf("unknown field class %q", decl.Class)}
	}

	field := &Field{
		Name:       name,
		Attname:    name,
		Class:      cls,
		Null:       decl.Null,
		Blank:      decl.Blank,
		HasDefault: decl.HasDefault(),
		PrimaryKey: decl.PrimaryKey,
		Model:      model,
	}

	if cls.Is(ClassRelatedField) {
		target, err := ParseRelationTarget(decl.To)
		if err != nil {
			return nil, &DeclarationError{App: model.AppLabel, Model: model.Name, Field: name, Message: err.Error()}
		}
		field.Remote = &RemoteField{
			Target:           target,
			ToField:          decl.ToField,
			RelatedName:      decl.RelatedName,
			RelatedQueryName: decl.RelatedQueryName,
			Through:          decl.Through,
		}
		if cls.Is(ClassForeignKey) {
			field.Attname = name + "_id"
		}
	}

	if cls.Is(ClassArrayField) {
		if decl.BaseField == nil {
			return nil, &DeclarationError{App: model.AppLabel, Model: model.Name, Field: name, Message: "array field requires base_field"}
		}
		base, err := a.newField(model, decl.BaseField, name)
		if err != nil {
			return nil, err
		}
		field.BaseField = base
	}

	field.Column = field.Attname
	return field, nil
}

func (a *Apps) register(model *Model) {
	models, ok := a.allModels[model.AppLabel]
	if !ok {
		models = make(map[string]*Model)
		a.allModels[model.AppLabel] = models
	}
	models[model.ModelName()] = model
	a.order = append(a.order, model)
}

// resolveRelations links relation targets of a concrete model. Unresolvable
// targets stay nil and are reported by PendingOperations.
func (a *Apps) resolveRelations(model *Model) {
	for _, field := range model.Fields {
		if field.Remote == nil {
			continue
		}
		target := field.Remote.Target
		var related *Model
		switch target.Kind {
		case TargetSelf:
			related = model
		case TargetLocal:
			related = a.allModels[model.AppLabel][strings.ToLower(target.Name)]
		case TargetQualified:
			related = a.allModels[target.Scope][strings.ToLower(target.Name)]
		}
		if related == nil {
			a.pending = append(a.pending, fmt.Sprintf("%s.%s: related model '%s' cannot be resolved", model.Label(), field.Name, target))
			continue
		}
		field.Remote.Model = related
	}
}

func (a *Apps) createThroughModels(model *Model) {
	for _, field := range model.Fields {
		if !field.Class.Is(ClassManyToManyField) || field.Remote.Through != "" || field.Remote.Model == nil {
			continue
		}
		target := field.Remote.Model
		through := &Model{
			Name:        model.Name + "_" + field.Name,
			Module:      model.Module,
			AppLabel:    model.AppLabel,
			AutoCreated: true,
		}
		from, to := model.ModelName(), target.ModelName()
		if from == to {
			from, to = "from_"+from, "to_"+to
		}
		through.Fields = []*Field{
			{Name: "id", Attname: "id", Column: "id", Class: a.defaultAutoField, PrimaryKey: true, AutoCreated: true, Model: through},
			a.throughForeignKey(through, from, model),
			a.throughForeignKey(through, to, target),
		}
		field.Remote.Through = through.Label()
		a.register(through)
	}
}

func (a *Apps) throughForeignKey(through *Model, name string, target *Model) *Field {
	return &Field{
		Name:    name,
		Attname: name + "_id",
		Column:  name + "_id",
		Class:   ClassForeignKey,
		Model:   through,
		Remote: &RemoteField{
			Target:      RelationTarget{Kind: TargetQualified, Scope: target.AppLabel, Name: target.Name},
			Model:       target,
			RelatedName: through.Name + "+",
		},
	}
}

func (a *Apps) addReverseRelations(model *Model) {
	for _, field := range model.Fields {
		if field.Remote == nil || field.Remote.Model == nil {
			continue
		}
		if strings.HasSuffix(field.Remote.RelatedName, "+") {
			continue
		}
		target := field.Remote.Model.ConcreteModel()

		cls := ClassManyToOneRel
		switch {
		case field.Class.Is(ClassOneToOneField):
			cls = ClassOneToOneRel
		case field.Class.Is(ClassManyToManyField):
			cls = ClassManyToManyRel
		}

		name := field.Remote.RelatedQueryName
		if name == "" {
			name = field.Remote.RelatedName
		}
		if name == "" {
			name = model.ModelName()
		}
		target.Relations = append(target.Relations, &ForeignObjectRel{
			Class: cls,
			Field: field,
			Model: target,
			Name:  name,
		})
	}
}

// GetModels returns registered models in registration order
func (a *Apps) GetModels(includeAutoCreated, includeSwapped bool) []*Model {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.getModels(includeAutoCreated, includeSwapped)
}

func (a *Apps) getModels(includeAutoCreated, includeSwapped bool) []*Model {
	models := make([]*Model, 0, len(a.order))
	for _, model := range a.order {
		if model.AutoCreated && !includeAutoCreated {
			continue
		}
		if model.Swapped != "" && !includeSwapped {
			continue
		}
		models = append(models, model)
	}
	return models
}

// GetModel returns the model registered under "app_label.ModelName"
func (a *Apps) GetModel(label string) (*Model, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.ready {
		return nil, ErrAppRegistryNotReady
	}
	idx := strings.LastIndex(label, ".")
	if idx < 0 {
		return nil, &LookupError{AppLabel: label}
	}
	appLabel, modelName := label[:idx], label[idx+1:]
	if _, ok := a.byLabel[appLabel]; !ok {
		return nil, &LookupError{AppLabel: appLabel, ModelName: modelName, NoApp: true}
	}
	model, ok := a.allModels[appLabel][strings.ToLower(modelName)]
	if !ok {
		return nil, &LookupError{AppLabel: appLabel, ModelName: modelName}
	}
	return model, nil
}

// IsInstalled reports whether an app with the given name is installed
func (a *Apps) IsInstalled(appName string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, cfg := range a.configs {
		if cfg.Name == appName {
			return true
		}
	}
	return false
}

// AppConfigs returns the installed apps in installation order
func (a *Apps) AppConfigs() []*AppConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*AppConfig(nil), a.configs...)
}

// PendingOperations lists relation targets that could not be resolved
func (a *Apps) PendingOperations() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.pending...)
}

// SwappableSettingsName returns the setting that swaps the model with the given
// label, or "" when none does. Results are memoized until ClearCache.
func (a *Apps) SwappableSettingsName(label string) string {
	label = strings.ToLower(label)

	a.mu.RLock()
	cached, ok := a.swappableCache[label]
	a.mu.RUnlock()
	if ok {
		return cached
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	result := ""
	for _, model := range a.getModels(false, true) {
		if model.Swapped != "" && strings.ToLower(model.Swapped) == label {
			result = model.Swappable
			break
		}
		if model.Swappable != "" && strings.ToLower(model.Label()) == label {
			result = model.Swappable
			break
		}
	}
	a.swappableCache[label] = result
	return result
}
