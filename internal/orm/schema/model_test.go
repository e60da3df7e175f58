package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelationTarget(t *testing.T) {
	tests := []struct {
		raw     string
		want    RelationTarget
		wantErr bool
	}{
		{raw: "self", want: RelationTarget{Kind: TargetSelf}},
		{raw: "Author", want: RelationTarget{Kind: TargetLocal, Name: "Author"}},
		{raw: "auth.User", want: RelationTarget{Kind: TargetQualified, Scope: "auth", Name: "User"}},
		{raw: " blog.Tag ", want: RelationTarget{Kind: TargetQualified, Scope: "blog", Name: "Tag"}},
		{raw: "", wantErr: true},
		{raw: "auth.", wantErr: true},
		{raw: ".User", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRelationTarget(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelationTarget_String(t *testing.T) {
	assert.Equal(t, "self", RelationTarget{Kind: TargetSelf}.String())
	assert.Equal(t, "Author", RelationTarget{Kind: TargetLocal, Name: "Author"}.String())
	assert.Equal(t, "auth.User", RelationTarget{Kind: TargetQualified, Scope: "auth", Name: "User"}.String())
}

func TestFieldClass(t *testing.T) {
	assert.True(t, ClassOneToOneField.Is(ClassForeignKey))
	assert.True(t, ClassOneToOneField.Is(ClassRelatedField))
	assert.True(t, ClassEmailField.Is(ClassCharField))
	assert.False(t, ClassTextField.Is(ClassCharField))
	assert.False(t, ClassGenericForeignKey.Is(ClassField))

	assert.True(t, ClassBigAutoField.IsAuto())
	assert.True(t, ClassBigAutoField.Is(ClassIntegerField))
	assert.False(t, ClassBigIntegerField.IsAuto())

	lookup, ok := ClassCharField.Lookup("icontains")
	require.True(t, ok)
	assert.Same(t, LookupIContains, lookup)

	lookup, ok = ClassForeignKey.Lookup("exact")
	require.True(t, ok)
	assert.Same(t, LookupRelatedExact, lookup)
	assert.True(t, lookup.Is(LookupExact))

	lookup, ok = ClassForeignKey.Lookup("icontains")
	require.True(t, ok)
	assert.Same(t, LookupIContains, lookup)

	_, ok = ClassIntegerField.Lookup("near")
	assert.False(t, ok)

	cls, ok := ClassByName("models.CharField")
	require.True(t, ok)
	assert.Same(t, ClassCharField, cls)

	cls, ok = ClassByName("django.contrib.postgres.fields.array.ArrayField")
	require.True(t, ok)
	assert.Same(t, ClassArrayField, cls)
}

func TestModel_GetField(t *testing.T) {
	author := &Model{Name: "Author", Module: "blog.models", AppLabel: "blog"}
	book := &Model{Name: "Book", Module: "blog.models", AppLabel: "blog"}
	author.Fields = []*Field{
		{Name: "id", Attname: "id", Class: ClassAutoField, PrimaryKey: true, Model: author},
	}
	fk := &Field{
		Name:    "author",
		Attname: "author_id",
		Class:   ClassForeignKey,
		Model:   book,
		Remote:  &RemoteField{Target: RelationTarget{Kind: TargetLocal, Name: "Author"}, Model: author},
	}
	book.Fields = []*Field{
		{Name: "id", Attname: "id", Class: ClassAutoField, PrimaryKey: true, Model: book},
		{Name: "title", Attname: "title", Class: ClassCharField, Model: book},
		fk,
	}
	author.Relations = []*ForeignObjectRel{{Class: ClassManyToOneRel, Field: fk, Model: author, Name: "book"}}

	member, err := book.GetField("author_id")
	require.NoError(t, err)
	assert.Same(t, fk, member)

	member, err = author.GetField("book")
	require.NoError(t, err)
	assert.True(t, member.IsRelation())
	assert.True(t, member.Nullable())

	_, err = book.GetField("publisher")
	var missing *FieldDoesNotExist
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Book has no field named 'publisher'", missing.Error())

	assert.Equal(t, []string{"author", "author_id", "id", "title"}, book.FieldNames())
	assert.Equal(t, []string{"book", "id"}, author.FieldNames())

	target, err := fk.TargetField()
	require.NoError(t, err)
	assert.Same(t, author.Fields[0], target)

	members := author.GetFields()
	require.Len(t, members, 2)
	_, isRel := members[0].(*ForeignObjectRel)
	assert.True(t, isRel, "reverse relations come first")
}

func TestField_TargetFieldToField(t *testing.T) {
	author := &Model{Name: "Author", Module: "blog.models", AppLabel: "blog"}
	author.Fields = []*Field{
		{Name: "id", Attname: "id", Class: ClassAutoField, PrimaryKey: true, Model: author},
		{Name: "handle", Attname: "handle", Class: ClassSlugField, Model: author},
	}
	fk := &Field{
		Name:    "author",
		Attname: "author_id",
		Class:   ClassForeignKey,
		Remote:  &RemoteField{Model: author, ToField: "handle"},
	}

	target, err := fk.TargetField()
	require.NoError(t, err)
	assert.Equal(t, "handle", target.Name)
}
