package opal

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opalrpc/opal/openapi"
)

var (
	emptyType = reflect.TypeFor[Empty]()
	validate  = newValidator()
)

// newValidator builds the shared validator. Field names in reported issues
// follow the json tags so clients see wire names, not Go identifiers.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Descriptor pairs a payload type with its derived JSON Schema. Route
// definitions hold one descriptor per direction; the dispatcher switches on
// Null and Open instead of inspecting the schema document.
type Descriptor struct {
	Type   reflect.Type
	Schema *openapi.Schema

	// Null marks the no-payload sentinel: no body is read, no content is
	// written.
	Null bool

	// Open marks a schema with no fixed property set (maps, any). Query
	// coercion passes the raw parameter map through unchanged.
	Open bool
}

// descriptorFor derives the descriptor for a payload type. The schema is
// generated once per route refinement and stored without the meta-schema
// marker, ready for embedding in an OpenAPI document. Types that cannot be
// serialized panic here, at route-definition time.
func descriptorFor(t reflect.Type) Descriptor {
	if t == emptyType {
		return Descriptor{Type: t, Null: true}
	}

	s := openapi.SchemaOf(t)
	s.Draft = ""

	return Descriptor{
		Type:   t,
		Schema: s,
		Open:   s.Properties == nil,
	}
}

// validatePayload runs tag validation over a struct payload. Non-struct
// payloads carry no validate tags, so there is nothing to enforce.
func validatePayload(v any) []Issue {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	if err := validate.Struct(rv.Interface()); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return nil
		}
		return validationIssues(err)
	}
	return nil
}
