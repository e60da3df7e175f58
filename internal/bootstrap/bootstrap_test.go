package bootstrap_test

import (
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/ormtypes/internal/bootstrap"
	"github.com/conduit-lang/ormtypes/internal/orm/conf"
	"github.com/conduit-lang/ormtypes/internal/orm/schema"
	"github.com/conduit-lang/ormtypes/internal/testing/ormtest"
)

const shopModels = `
models:
  - name: Customer
    fields:
      - name: name
        class: CharField
  - name: Order
    fields:
      - name: customer
        class: ForeignKey
        to: Customer
      - name: coupon
        class: ForeignKey
        to: marketing.Coupon
`

func TestInitialize(t *testing.T) {
	project := ormtest.New(t, ormtest.Case{
		InstalledApps: []string{"django.contrib.auth", "shop"},
		Apps:          map[string]string{"shop": shopModels},
	})

	reg, err := bootstrap.Initialize(project.SettingsModule)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, reg.ID)
	assert.True(t, reg.Apps.Ready())
	assert.True(t, reg.Settings.Configured())
	assert.Equal(t, ormtest.SettingsModule, reg.Settings.Module)

	order, err := reg.Apps.GetModel("shop.Order")
	require.NoError(t, err)
	assert.Equal(t, "shop.models.Order", order.Fullname())

	user, err := reg.Apps.GetModel("auth.User")
	require.NoError(t, err)
	assert.Same(t, schema.ClassBigAutoField, user.PK().Class)
}

func TestInitialize_RestoresEnvironment(t *testing.T) {
	project := ormtest.New(t, ormtest.Case{InstalledApps: []string{}})

	t.Setenv(conf.SettingsModuleEnv, "previous.settings")

	_, err := bootstrap.Initialize(project.SettingsModule)
	require.NoError(t, err)
	assert.Equal(t, "previous.settings", os.Getenv(conf.SettingsModuleEnv))

	_, err = bootstrap.Initialize("does.not.exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, conf.ErrImproperlyConfigured))
	assert.Equal(t, "previous.settings", os.Getenv(conf.SettingsModuleEnv))
}

func TestInitialize_AppendsWorkingDirectory(t *testing.T) {
	project := ormtest.New(t, ormtest.Case{InstalledApps: []string{}})

	_, err := bootstrap.Initialize(project.SettingsModule)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Contains(t, conf.SearchPath(), cwd)
}

func TestInitialize_FreshRegistries(t *testing.T) {
	project := ormtest.New(t, ormtest.Case{InstalledApps: []string{}})

	first, err := bootstrap.Initialize(project.SettingsModule)
	require.NoError(t, err)
	second, err := bootstrap.Initialize(project.SettingsModule)
	require.NoError(t, err)

	assert.NotSame(t, first.Apps, second.Apps)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestInitialize_InvalidAutoField(t *testing.T) {
	project := ormtest.New(t, ormtest.Case{CustomSettings: "default_auto_field: CharField\n"})

	_, err := bootstrap.Initialize(project.SettingsModule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an auto field class")
}

func TestInitialize_LogsPendingRelations(t *testing.T) {
	project := ormtest.New(t, ormtest.Case{
		InstalledApps: []string{"shop"},
		Apps:          map[string]string{"shop": shopModels},
	})

	core, logs := observer.New(zap.DebugLevel)
	_, err := bootstrap.Initialize(project.SettingsModule, bootstrap.WithLogger(zap.New(core)))
	require.NoError(t, err)

	warnings := logs.FilterMessage("unresolved relation").All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].ContextMap()["detail"], "marketing.Coupon")
}

func TestInitialize_Source(t *testing.T) {
	project := ormtest.New(t, ormtest.Case{InstalledApps: []string{"inventory"}})

	decl, err := schema.ParseAppDeclaration([]byte("models:\n  - name: Item\n"))
	require.NoError(t, err)

	reg, err := bootstrap.Initialize(project.SettingsModule,
		bootstrap.WithSource(schema.MapSource{"inventory": decl}))
	require.NoError(t, err)

	_, err = reg.Apps.GetModel("inventory.Item")
	assert.NoError(t, err)
}
