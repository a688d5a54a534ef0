package openapi

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Draft202012 is the meta-schema marker stamped on standalone schemas.
// Schemas embedded in a Document must not carry it.
const Draft202012 = "https://json-schema.org/draft/2020-12/schema"

// Schema is a JSON Schema object (the subset OpenAPI 3.1 uses).
type Schema struct {
	Draft                string             `json:"$schema,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Type                 string             `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	MinLength            int                `json:"minLength,omitempty"`
	MaxLength            int                `json:"maxLength,omitempty"`
	MinItems             int                `json:"minItems,omitempty"`
	MaxItems             int                `json:"maxItems,omitempty"`
}

// ComponentRef returns a schema that references a named component schema.
func ComponentRef(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

// SchemaOf derives a JSON Schema from a Go type, including the meta-schema
// marker. Callers embedding the result in a larger document should clear
// the Draft field first.
//
// Unsupported kinds (channels, functions, complex numbers) panic: a type
// that cannot be serialized is a programming error, caught at startup.
func SchemaOf(t reflect.Type) *Schema {
	s := typeSchema(t, make(map[reflect.Type]bool))
	s.Draft = Draft202012
	return s
}

// typeSchema converts a reflect.Type to a Schema. The seen set breaks
// self-referential types; a revisited struct degrades to a bare object.
func typeSchema(t reflect.Type, seen map[reflect.Type]bool) *Schema {
	if t.Kind() == reflect.Pointer {
		return typeSchema(t.Elem(), seen)
	}

	switch t {
	case reflect.TypeFor[time.Time]():
		return &Schema{Type: "string", Format: "date-time"}
	case reflect.TypeFor[uuid.UUID]():
		return &Schema{Type: "string", Format: "uuid"}
	case reflect.TypeFor[json.RawMessage]():
		return &Schema{}
	}

	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: "string", Format: "byte"}
		}
		return &Schema{Type: "array", Items: typeSchema(t.Elem(), seen)}
	case reflect.Array:
		return &Schema{Type: "array", Items: typeSchema(t.Elem(), seen)}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return &Schema{Type: "object"}
		}
		return &Schema{Type: "object", AdditionalProperties: typeSchema(t.Elem(), seen)}
	case reflect.Struct:
		if seen[t] {
			return &Schema{Type: "object"}
		}
		seen[t] = true
		defer delete(seen, t)
		return structSchema(t, seen)
	case reflect.Interface:
		return &Schema{}
	default:
		panic(fmt.Sprintf("openapi: cannot derive schema for %s (kind %s)", t, t.Kind()))
	}
}

// structSchema converts a struct type to an object schema. Field names come
// from json tags, required/enum/bounds from validate tags, descriptions from
// doc tags. Embedded structs are flattened the way encoding/json promotes them.
func structSchema(t reflect.Type, seen map[reflect.Type]bool) *Schema {
	s := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema),
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		// Anonymous struct fields without an explicit json name are promoted.
		if f.Anonymous && f.Tag.Get("json") == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded := typeSchema(ft, seen)
				for k, v := range embedded.Properties {
					if _, exists := s.Properties[k]; !exists {
						s.Properties[k] = v
					}
				}
				s.Required = append(s.Required, embedded.Required...)
				continue
			}
		}

		prop := typeSchema(f.Type, seen)

		if doc := f.Tag.Get("doc"); doc != "" {
			prop.Description = doc
		}

		if required := applyConstraints(prop, f); required {
			s.Required = append(s.Required, name)
		}

		s.Properties[name] = prop
	}

	return s
}

// applyConstraints maps validate-tag rules onto the property schema and
// reports whether the field is required.
func applyConstraints(prop *Schema, f reflect.StructField) bool {
	tag := f.Tag.Get("validate")
	if tag == "" {
		return false
	}

	required := false
	for _, rule := range strings.Split(tag, ",") {
		name, param, _ := strings.Cut(rule, "=")
		switch name {
		case "required":
			required = true
		case "oneof":
			prop.Enum = strings.Fields(param)
		case "min":
			applyBound(prop, f.Type, param, true)
		case "max":
			applyBound(prop, f.Type, param, false)
		}
	}
	return required
}

// applyBound maps a min/max validate rule onto the schema field that fits
// the Go type: length for strings, item count for collections, value bounds
// for numbers.
func applyBound(prop *Schema, t reflect.Type, param string, isMin bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		n, err := strconv.Atoi(param)
		if err != nil {
			return
		}
		if isMin {
			prop.MinLength = n
		} else {
			prop.MaxLength = n
		}
	case reflect.Slice, reflect.Array, reflect.Map:
		n, err := strconv.Atoi(param)
		if err != nil {
			return
		}
		if isMin {
			prop.MinItems = n
		} else {
			prop.MaxItems = n
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return
		}
		if isMin {
			prop.Minimum = &v
		} else {
			prop.Maximum = &v
		}
	}
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
