package openapi_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/opalrpc/opal/openapi"
)

func sampleDocument() *openapi.Document {
	doc := openapi.NewDocument("sample", "1.0.0")
	doc.AddOperation("/v1/listWidgets", "GET", &openapi.Operation{
		OperationID: "listWidgets",
		OpType:      "query",
		Responses: map[string]openapi.Response{
			"200": {
				Description: "Successful response",
				Content: map[string]openapi.MediaType{
					"application/json": {Schema: &openapi.Schema{Type: "array", Items: &openapi.Schema{Type: "string"}}},
				},
			},
		},
	})
	doc.AddOperation("/v1/createWidget", "POST", &openapi.Operation{
		OperationID: "createWidget",
		OpType:      "mutation",
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]openapi.MediaType{
				"application/json": {Schema: openapi.ComponentRef("Widget")},
			},
		},
		Responses: map[string]openapi.Response{
			"204": {Description: "No content"},
		},
	})
	doc.AddSchema("Widget", &openapi.Schema{
		Type:       "object",
		Properties: map[string]*openapi.Schema{"name": {Type: "string"}},
		Required:   []string{"name"},
	})
	return doc
}

func TestDocumentJSON(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	data, err := doc.JSON()
	require.NoError(t, err)

	assert.True(t, bytes.HasSuffix(data, []byte("\n")))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "3.1.0", decoded["openapi"])

	paths, ok := decoded["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/v1/listWidgets")
	assert.Contains(t, paths, "/v1/createWidget")

	// Methods are stored lower-case.
	item := paths["/v1/createWidget"].(map[string]any)
	assert.Contains(t, item, "post")

	// The extension field survives serialization under its wire name.
	op := item["post"].(map[string]any)
	assert.Equal(t, "mutation", op[openapi.OpTypeExtension])
}

func TestDocumentJSONDeterministic(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	first, err := doc.JSON()
	require.NoError(t, err)
	second, err := doc.JSON()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDocumentYAML(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()
	data, err := doc.YAML()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "3.1.0", decoded["openapi"])

	// Key names must follow the json tags, not Go field names.
	text := string(data)
	assert.Contains(t, text, "operationId:")
	assert.Contains(t, text, "x-request-op-type:")
	assert.NotContains(t, text, "operationid:")
}

func TestDocumentWriteFiles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	doc := sampleDocument()
	require.NoError(t, doc.WriteFiles(dir))

	jsonData, err := os.ReadFile(filepath.Join(dir, "openapi.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(jsonData), "{"))

	yamlData, err := os.ReadFile(filepath.Join(dir, "openapi.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "openapi: 3.1.0")
}

func TestWriteJSONAndYAML(t *testing.T) {
	t.Parallel()

	doc := sampleDocument()

	var jsonBuf bytes.Buffer
	require.NoError(t, doc.WriteJSON(&jsonBuf))
	assert.Contains(t, jsonBuf.String(), `"openapi": "3.1.0"`)

	var yamlBuf bytes.Buffer
	require.NoError(t, doc.WriteYAML(&yamlBuf))
	assert.Contains(t, yamlBuf.String(), "title: sample")
}

func TestAddSchemaFirstRegistrationWins(t *testing.T) {
	t.Parallel()

	doc := openapi.NewDocument("t", "1")
	doc.AddSchema("Thing", &openapi.Schema{Type: "object"})
	doc.AddSchema("Thing", &openapi.Schema{Type: "string"})
	assert.Equal(t, "object", doc.Components.Schemas["Thing"].Type)
}
