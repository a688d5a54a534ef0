// Package openapi models the subset of OpenAPI 3.1 that opal emits:
// a document of paths, operations, and JSON Schemas derived from Go types.
//
// The model is deliberately write-only. It exists to be assembled by a
// router and serialized; it does not parse existing documents.
package openapi

// Version is the OpenAPI version stamped on generated documents.
const Version = "3.1.0"

// OpTypeExtension is the extension field recording whether an operation
// was declared as a query or a mutation.
const OpTypeExtension = "x-request-op-type"

// Document is the top-level OpenAPI document.
type Document struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components *Components         `json:"components,omitempty"`
}

// Info holds API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server describes a server the API is reachable on.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem maps lower-case HTTP methods to operations.
type PathItem map[string]*Operation

// Operation describes a single operation on a path.
type Operation struct {
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
	Deprecated  bool                `json:"deprecated,omitempty"`

	// OpType is the x-request-op-type extension: "query" or "mutation".
	OpType string `json:"x-request-op-type,omitempty"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"`
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody describes an operation's request body.
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content"`
}

// MediaType pairs a media type with an optional schema.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Response describes a single response by status code.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// Components holds reusable schemas referenced via $ref.
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// NewDocument returns an empty document for the given title and version.
func NewDocument(title, version string) *Document {
	return &Document{
		OpenAPI: Version,
		Info:    Info{Title: title, Version: version},
		Paths:   make(map[string]PathItem),
	}
}

// AddOperation records an operation under path and method. The method is
// stored lower-case, as OpenAPI path items require.
func (d *Document) AddOperation(path, method string, op *Operation) {
	if d.Paths == nil {
		d.Paths = make(map[string]PathItem)
	}
	item, ok := d.Paths[path]
	if !ok {
		item = make(PathItem)
		d.Paths[path] = item
	}
	item[lower(method)] = op
}

// AddSchema registers a named component schema. The first registration of
// a name wins; callers resolve collisions before adding.
func (d *Document) AddSchema(name string, s *Schema) {
	if d.Components == nil {
		d.Components = &Components{}
	}
	if d.Components.Schemas == nil {
		d.Components.Schemas = make(map[string]*Schema)
	}
	if _, exists := d.Components.Schemas[name]; !exists {
		d.Components.Schemas[name] = s
	}
}

// lower is an ASCII-only ToLower; HTTP method names never need Unicode.
func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
