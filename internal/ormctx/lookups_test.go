package ormctx_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/ormtypes/internal/orm/query"
	"github.com/conduit-lang/ormtypes/internal/orm/schema"
	"github.com/conduit-lang/ormtypes/internal/ormctx"
)

func TestContext_SolveLookupType(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f := newFixture(t, ormctx.WithLogger(zap.New(core)))
	book := f.model(t, "shop.Book")
	owned := f.abstract(t, "shop.models.Owned")

	tests := []struct {
		name        string
		lookup      string
		abstract    bool
		fieldParts  []string
		lookupParts []string
	}{
		{"operator after relation", "author__name__icontains", false, []string{"author", "name"}, []string{"icontains"}},
		{"primary key", "pk__in", false, []string{"pk"}, []string{"in"}},
		{"inherited relation", "profile__bio", false, []string{"profile", "bio"}, []string{}},
		{"abstract relation", "profile", true, []string{"profile"}, []string{}},
		{"abstract traversal", "profile__bio", true, []string{"profile", "bio"}, []string{}},
		{"abstract traversal with operator", "profile__bio__icontains", true, []string{"profile", "bio"}, []string{"icontains"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := book
			if tt.abstract {
				model = owned
			}
			solved, err := f.ctx.SolveLookupType(model, tt.lookup)
			require.NoError(t, err)
			require.NotNil(t, solved)
			assert.Equal(t, tt.fieldParts, solved.FieldParts)
			assert.Equal(t, tt.lookupParts, solved.LookupParts)
			assert.False(t, solved.Expression)
		})
	}

	assert.NotZero(t, logs.FilterMessage("resolving lookup manually").Len())

	t.Run("primary key of abstract model", func(t *testing.T) {
		for _, lookup := range []string{"pk", "pk__in"} {
			solved, err := f.ctx.SolveLookupType(owned, lookup)
			assert.NoError(t, err)
			assert.Nil(t, solved, lookup)
		}
	})

	t.Run("unknown field of abstract model", func(t *testing.T) {
		solved, err := f.ctx.SolveLookupType(owned, "nickname")
		var fieldErr *query.FieldError
		assert.True(t, errors.As(err, &fieldErr))
		assert.Nil(t, solved)

		_, err = f.ctx.SolveLookupType(owned, "profile__nickname__gt")
		assert.True(t, errors.As(err, &fieldErr), "errors of the related model propagate")
	})

	t.Run("field errors propagate", func(t *testing.T) {
		_, err := f.ctx.SolveLookupType(book, "nope")
		var fieldErr *query.FieldError
		require.True(t, errors.As(err, &fieldErr))
		assert.Contains(t, fieldErr.Message, "Cannot resolve keyword 'nope' into field.")
	})
}

func TestContext_ResolveLookupIntoField(t *testing.T) {
	f := newFixture(t)
	book := f.model(t, "shop.Book")
	author := f.model(t, "shop.Author")
	profile := f.model(t, "shop.Profile")
	owned := f.abstract(t, "shop.models.Owned")

	t.Run("bare field name", func(t *testing.T) {
		for declared := range f.ctx.Fields(book) {
			if declared.IsRelatedField() {
				continue
			}
			member, terminal, err := f.ctx.ResolveLookupIntoField(book, declared.Name)
			require.NoError(t, err, declared.Name)
			assert.Same(t, declared, member, declared.Name)
			assert.Same(t, book, terminal, declared.Name)
		}
	})

	tests := []struct {
		name     string
		model    *schema.Model
		lookup   string
		field    string
		terminal string
	}{
		{"forward traversal", book, "author__name", "name", "shop.Author"},
		{"id suffix", book, "author_id", "id", "shop.Author"},
		{"primary key alias", book, "pk", "id", "shop.Book"},
		{"reverse traversal", author, "book__title", "title", "shop.Book"},
		{"abstract fallback", owned, "profile__bio", "bio", "shop.Profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			member, terminal, err := f.ctx.ResolveLookupIntoField(tt.model, tt.lookup)
			require.NoError(t, err)
			require.NotNil(t, member)
			assert.Equal(t, tt.field, member.FieldName())
			assert.Equal(t, tt.terminal, terminal.Label())
		})
	}

	t.Run("reverse relation member", func(t *testing.T) {
		member, terminal, err := f.ctx.ResolveLookupIntoField(profile, "book")
		require.NoError(t, err)
		assert.Equal(t, "book", member.FieldName())
		assert.Same(t, book, terminal)
	})

	t.Run("unclassified lookup", func(t *testing.T) {
		member, terminal, err := f.ctx.ResolveLookupIntoField(owned, "pk")
		require.NoError(t, err)
		assert.Nil(t, member)
		assert.Same(t, owned, terminal)
	})

	t.Run("operators are rejected", func(t *testing.T) {
		for _, lookup := range []string{"title__icontains", "author__name__exact", "author__in"} {
			_, _, err := f.ctx.ResolveLookupIntoField(book, lookup)
			assert.True(t, errors.Is(err, ormctx.ErrLookupsAreUnsupported), lookup)
		}
	})
}

func TestContext_ResolveFieldFromParts(t *testing.T) {
	f := newFixture(t)
	book := f.model(t, "shop.Book")

	member, terminal, err := f.ctx.ResolveFieldFromParts([]string{"author", "pk"}, book)
	require.NoError(t, err)
	assert.Equal(t, "id", member.FieldName())
	assert.Equal(t, "shop.Author", terminal.Label())

	member, terminal, err = f.ctx.ResolveFieldFromParts([]string{"author"}, book)
	require.NoError(t, err)
	assert.Equal(t, "author", member.FieldName())
	assert.Equal(t, "shop.Author", terminal.Label())

	_, _, err = f.ctx.ResolveFieldFromParts([]string{"author", "missing"}, book)
	assert.Error(t, err)
}
