package stubs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/ormtypes/internal/orm/schema"
	"github.com/conduit-lang/ormtypes/internal/types"
)

// AddModels declares a class for every model of the registry, abstract
// ancestors included. Explicit model annotations become class attributes.
func (d *Database) AddModels(apps *schema.Apps) error {
	seen := make(map[*schema.Model]bool)
	var models []*schema.Model
	for _, model := range apps.GetModels(true, true) {
		for _, ancestor := range model.MRO() {
			if !seen[ancestor] {
				seen[ancestor] = true
				models = append(models, ancestor)
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	modelBase := d.resolveLocked(ModelFullname)
	infos := make(map[*schema.Model]*types.TypeInfo, len(models))
	for _, model := range models {
		info := types.NewTypeInfo(model.Fullname())
		d.infos[info.Fullname] = info
		infos[model] = info
	}

	for _, model := range models {
		info := infos[model]
		for _, base := range model.Bases {
			info.Bases = append(info.Bases, types.NewInstance(infos[base]))
		}
		if len(info.Bases) == 0 {
			info.Bases = []*types.Instance{types.NewInstance(modelBase)}
		}

		names := make([]string, 0, len(model.Annotations))
		for name := range model.Annotations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			typ, err := types.Parse(model.Annotations[name], d.resolveLocked)
			if err != nil {
				return fmt.Errorf("model %s: annotation %s: %w", model.Label(), name, err)
			}
			info.Attrs[name] = typ
		}
	}
	return nil
}

// AnnotatedInstance returns an instance of a model class carrying the extra
// attributes added by a queryset annotation.
func (d *Database) AnnotatedInstance(modelFullname string, extra *types.ExtraAttrs) (*types.Instance, error) {
	model, ok := d.Lookup(modelFullname)
	if !ok {
		return nil, fmt.Errorf("unknown model class %s", modelFullname)
	}

	names := []string{}
	if extra != nil {
		names = extra.Names
	}
	info := types.NewTypeInfo(fmt.Sprintf("%s[%s, {%s}]", WithAnnotationsFullname, modelFullname, strings.Join(names, ", ")))
	info.Bases = []*types.Instance{types.NewInstance(model)}
	info.IsAnnotatedModel = true

	return &types.Instance{Info: info, ExtraAttrs: extra}, nil
}
