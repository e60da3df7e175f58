package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppDeclaration_Null(t *testing.T) {
	decl, err := ParseAppDeclaration([]byte(`
models:
  - name: Book
    fields:
      - name: pages
        class: IntegerField
        null: true
      - name: title
        class: CharField
        null: false
      - name: subtitle
        class: CharField
        "null": true
      - name: isbn
        class: CharField
      - name: ratings
        class: ArrayField
        null: true
        base_field:
          class: IntegerField
          null: true
`))
	require.NoError(t, err)
	require.Len(t, decl.Models, 1)

	nulls := make(map[string]bool)
	for _, field := range decl.Models[0].Fields {
		nulls[field.Name] = field.Null
	}
	assert.Equal(t, map[string]bool{
		"pages":    true,
		"title":    false,
		"subtitle": true,
		"isbn":     false,
		"ratings":  true,
	}, nulls)

	ratings := decl.Models[0].Fields[4]
	require.NotNil(t, ratings.BaseField)
	assert.True(t, ratings.BaseField.Null)
	assert.Equal(t, "IntegerField", ratings.BaseField.Class)
}

func TestParseAppDeclaration_KeepsOtherKeys(t *testing.T) {
	decl, err := ParseAppDeclaration([]byte(`
models:
  - name: Book
    fields:
      - name: author
        class: ForeignKey
        to: Author
        null: true
        blank: true
        default: null
        related_name: books
`))
	require.NoError(t, err)

	field := decl.Models[0].Fields[0]
	assert.Equal(t, "author", field.Name)
	assert.Equal(t, "Author", field.To)
	assert.Equal(t, "books", field.RelatedName)
	assert.True(t, field.Null)
	assert.True(t, field.Blank)
	assert.True(t, field.HasDefault())
}

func TestParseAppDeclaration_InvalidNull(t *testing.T) {
	_, err := ParseAppDeclaration([]byte(`
models:
  - name: Book
    fields:
      - name: pages
        class: IntegerField
        null: sometimes
`))
	assert.Error(t, err)
}
