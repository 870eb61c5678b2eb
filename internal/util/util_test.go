package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.Name}}, pending: {{join \", \" .Pending}}", map[string]any{
		"Name":    "buyer",
		"Pending": []string{"unit", "quantity"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello buyer, pending: unit, quantity", out)
}

func TestRenderTemplateFastPath(t *testing.T) {
	out, err := RenderTemplate("no markers here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers here", out)
}

func TestRenderTemplateDefault(t *testing.T) {
	out, err := RenderTemplate(`{{default "none" .Missing}}`, map[string]any{"Missing": ""})
	require.NoError(t, err)
	assert.Equal(t, "none", out)
}

func TestRenderTemplateParseError(t *testing.T) {
	_, err := RenderTemplate("{{.Unclosed", nil)
	assert.Error(t, err)
}

type searchArgs struct {
	Query string `json:"query" description:"Product to search for"`
	Limit *int   `json:"limit,omitempty" description:"Max results"`
	Kind  string `json:"kind" enum:"Sample|Order"`
}

func TestCreateSchemaFromStruct(t *testing.T) {
	schema := CreateSchema(searchArgs{})

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"query", "kind"}, schema["required"])

	props := schema["properties"].(map[string]any)
	query := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Product to search for", query["description"])

	kind := props["kind"].(map[string]any)
	assert.Equal(t, []any{"Sample", "Order"}, kind["enum"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(searchArgs{})

	err := ValidateParameters(map[string]any{"query": "benzene", "kind": "Order"}, schema)
	assert.NoError(t, err)

	err = ValidateParameters(map[string]any{"kind": "Order"}, schema)
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "query", ve.Field)

	err = ValidateParameters(map[string]any{"query": 42, "kind": "Order"}, schema)
	assert.Error(t, err)

	err = ValidateParameters(map[string]any{"query": "benzene", "kind": "Subscription"}, schema)
	assert.Error(t, err)
}
