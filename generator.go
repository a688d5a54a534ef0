package opal

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"

	"github.com/opalrpc/opal/openapi"
)

const (
	contentJSON = "application/json"
	contentYAML = "application/yaml"

	errorComponent      = "ErrorResponse"
	validationComponent = "ValidationErrorResponse"
)

// Spec assembles the OpenAPI document from the registry. It is a pure
// function of the current definitions: calling it twice without registry
// mutation yields identical documents.
func (r *Router) Spec() *openapi.Document {
	doc := openapi.NewDocument(r.cfg.Name, r.cfg.Version)

	defs := r.snapshot()
	if len(defs) == 0 {
		return doc
	}

	c := newComponentSet()
	for _, def := range defs {
		doc.AddOperation(def.URL, def.Method, buildOperation(def, c))
	}
	doc.Components = &openapi.Components{Schemas: c.schemas}
	return doc
}

// buildOperation derives the OpenAPI operation for one definition. The
// operation kind travels in the x-request-op-type extension; the fixed 400
// and 500 envelopes are present on every operation.
func buildOperation(def Definition, c *componentSet) *openapi.Operation {
	op := &openapi.Operation{
		OperationID: def.OpID,
		Summary:     def.Summary,
		Description: def.Description,
		Tags:        def.Tags,
		Deprecated:  def.Deprecated,
		OpType:      string(def.Kind),
		Responses:   make(map[string]openapi.Response, 3),
	}

	if !def.Input.Null {
		switch def.Method {
		case http.MethodPost, http.MethodPut:
			op.RequestBody = &openapi.RequestBody{
				Required: true,
				Content: map[string]openapi.MediaType{
					contentJSON: {Schema: c.schemaFor(def.Input)},
				},
			}
		default:
			// Dispatch reads these from the query string, so that is
			// how the document advertises them.
			op.Parameters = queryParameters(def.Input)
		}
	}

	if def.Output.Null {
		op.Responses["204"] = openapi.Response{Description: "No content"}
	} else {
		op.Responses["200"] = openapi.Response{
			Description: "Successful response",
			Content: map[string]openapi.MediaType{
				contentJSON: {Schema: c.schemaFor(def.Output)},
			},
		}
	}

	op.Responses["400"] = openapi.Response{
		Description: "Validation failure",
		Content: map[string]openapi.MediaType{
			contentJSON: {Schema: openapi.ComponentRef(validationComponent)},
		},
	}
	op.Responses["500"] = openapi.Response{
		Description: "Handler failure",
		Content: map[string]openapi.MediaType{
			contentJSON: {Schema: openapi.ComponentRef(errorComponent)},
		},
	}

	return op
}

// queryParameters documents a declared input that dispatch reads from the
// query string. Property names are sorted for deterministic output; an open
// schema declares nothing, so it documents nothing.
func queryParameters(d Descriptor) []openapi.Parameter {
	if d.Open || d.Schema == nil || len(d.Schema.Properties) == 0 {
		return nil
	}

	names := make([]string, 0, len(d.Schema.Properties))
	for name := range d.Schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	required := make(map[string]bool, len(d.Schema.Required))
	for _, name := range d.Schema.Required {
		required[name] = true
	}

	params := make([]openapi.Parameter, 0, len(names))
	for _, name := range names {
		params = append(params, openapi.Parameter{
			Name:     name,
			In:       "query",
			Required: required[name],
			Schema:   d.Schema.Properties[name],
		})
	}
	return params
}

// componentSet lifts named struct types into components.schemas so repeated
// types serialize once and operations reference them. First registration
// wins a name; a different type with the same name stays inline.
type componentSet struct {
	schemas map[string]*openapi.Schema
	types   map[string]reflect.Type
}

func newComponentSet() *componentSet {
	c := &componentSet{
		schemas: make(map[string]*openapi.Schema),
		types:   make(map[string]reflect.Type),
	}
	c.schemas[errorComponent] = &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"message": {Type: "string"},
		},
		Required: []string{"message"},
	}
	c.schemas[validationComponent] = &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"message": {Type: "string"},
			"errors": {
				Type: "array",
				Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"field":   {Type: "string"},
						"message": {Type: "string"},
					},
					Required: []string{"field", "message"},
				},
			},
		},
		Required: []string{"message"},
	}
	return c
}

// schemaFor returns either a reference to a lifted component or the inline
// schema when the type is anonymous or its name is taken.
func (c *componentSet) schemaFor(d Descriptor) *openapi.Schema {
	t := d.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.Name() == "" || t.PkgPath() == "" {
		return d.Schema
	}

	name := t.Name()
	if prev, ok := c.types[name]; ok {
		if prev != t {
			return d.Schema
		}
		return openapi.ComponentRef(name)
	}
	if _, reserved := c.schemas[name]; reserved {
		return d.Schema
	}

	c.types[name] = t
	c.schemas[name] = d.Schema
	return openapi.ComponentRef(name)
}

// specCache memoizes the serialized document behind the registry's
// generation counter, so the fixed endpoints serve bytes without
// reassembling the document per request.
type specCache struct {
	mu   sync.Mutex
	gen  uint64
	json []byte
	yaml []byte
}

// specBytes returns the serialized document, rebuilding only when the
// registry generation has moved since the last build.
func (r *Router) specBytes() (jsonData, yamlData []byte, err error) {
	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()

	r.spec.mu.Lock()
	defer r.spec.mu.Unlock()

	if r.spec.gen == gen && r.spec.json != nil {
		return r.spec.json, r.spec.yaml, nil
	}

	doc := r.Spec()
	jsonData, err = doc.JSON()
	if err != nil {
		return nil, nil, err
	}
	yamlData, err = doc.YAML()
	if err != nil {
		return nil, nil, err
	}

	r.spec.gen = gen
	r.spec.json = jsonData
	r.spec.yaml = yamlData
	return jsonData, yamlData, nil
}

// WriteSpec writes the document as indented JSON, byte-identical to what
// the openapi.json endpoint serves.
func (r *Router) WriteSpec(w io.Writer) error {
	jsonData, _, err := r.specBytes()
	if err != nil {
		return err
	}
	_, err = w.Write(jsonData)
	return err
}

// WriteSpecYAML writes the document as YAML.
func (r *Router) WriteSpecYAML(w io.Writer) error {
	_, yamlData, err := r.specBytes()
	if err != nil {
		return err
	}
	_, err = w.Write(yamlData)
	return err
}

// ExportSpec writes openapi.json and openapi.yaml into dir, creating it if
// needed. This is what `opal gen` runs inside the target package.
func (r *Router) ExportSpec(dir string) error {
	jsonData, yamlData, err := r.specBytes()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "openapi.json"), jsonData, 0o644); err != nil {
		return fmt.Errorf("write openapi.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "openapi.yaml"), yamlData, 0o644); err != nil {
		return fmt.Errorf("write openapi.yaml: %w", err)
	}
	return nil
}

// serveSpecJSON answers GET {baseURL}/openapi.json.
func (r *Router) serveSpecJSON(w http.ResponseWriter, _ *http.Request) {
	jsonData, _, err := r.specBytes()
	if err != nil {
		r.respondError(w, failureError(err))
		return
	}
	w.Header().Set("Content-Type", contentJSON)
	_, _ = w.Write(jsonData)
}

// serveSpecYAML answers GET {baseURL}/openapi.yaml.
func (r *Router) serveSpecYAML(w http.ResponseWriter, _ *http.Request) {
	_, yamlData, err := r.specBytes()
	if err != nil {
		r.respondError(w, failureError(err))
		return
	}
	w.Header().Set("Content-Type", contentYAML)
	_, _ = w.Write(yamlData)
}
