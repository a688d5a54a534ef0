package opal

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/opalrpc/opal/openapi"
)

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		prop *openapi.Schema
		want any
	}{
		{"string passthrough", "hello", &openapi.Schema{Type: "string"}, "hello"},
		{"numeric string stays string", "42", &openapi.Schema{Type: "string"}, "42"},
		{"bool true", "true", &openapi.Schema{Type: "boolean"}, true},
		{"bool anything else is false", "yes", &openapi.Schema{Type: "boolean"}, false},
		{"bool TRUE is false", "TRUE", &openapi.Schema{Type: "boolean"}, false},
		{"integer", "42", &openapi.Schema{Type: "integer"}, int64(42)},
		{"integer negative", "-7", &openapi.Schema{Type: "integer"}, int64(-7)},
		{"integer from float literal", "3.5", &openapi.Schema{Type: "integer"}, 3.5},
		{"integer unparseable stays raw", "lots", &openapi.Schema{Type: "integer"}, "lots"},
		{"number", "2.75", &openapi.Schema{Type: "number"}, 2.75},
		{"number unparseable stays raw", "NaN-ish", &openapi.Schema{Type: "number"}, "NaN-ish"},
		{"array parses as JSON literal", `["a","b"]`, &openapi.Schema{Type: "array"}, []any{"a", "b"}},
		{"object parses as JSON literal", `{"a":1}`, &openapi.Schema{Type: "object"}, map[string]any{"a": float64(1)}},
		{"invalid JSON literal stays raw", "{nope", &openapi.Schema{Type: "object"}, "{nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := coerceValue(tt.raw, tt.prop)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("coerceValue(%q) = %#v (%T), want %#v (%T)",
					tt.raw, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestCoerceQuery_DropsUndeclaredKeys(t *testing.T) {
	d := descriptorFor(reflect.TypeFor[CreateWidget]())
	query := url.Values{
		"name":    {"gizmo"},
		"count":   {"3"},
		"unknown": {"zzz"},
	}

	raw := coerceQuery(query, d)
	payload, ok := raw.(map[string]any)
	if !ok {
		t.Fatalf("expected map payload, got %T", raw)
	}

	if payload["name"] != "gizmo" {
		t.Errorf("expected name gizmo, got %v", payload["name"])
	}
	if payload["count"] != int64(3) {
		t.Errorf("expected count 3, got %#v", payload["count"])
	}
	if _, present := payload["unknown"]; present {
		t.Error("expected undeclared key to be dropped")
	}
}

func TestCoerceQuery_SkipsAbsentKeys(t *testing.T) {
	d := descriptorFor(reflect.TypeFor[CreateWidget]())
	payload := coerceQuery(url.Values{"name": {"gizmo"}}, d).(map[string]any)

	if _, present := payload["count"]; present {
		t.Error("expected absent key to stay absent, not default")
	}
}

func TestCoerceQuery_OpenSchemaPassesThrough(t *testing.T) {
	d := descriptorFor(reflect.TypeFor[map[string]string]())
	query := url.Values{
		"anything": {"goes"},
		"multi":    {"first", "second"},
	}

	raw := coerceQuery(query, d)
	payload, ok := raw.(map[string]string)
	if !ok {
		t.Fatalf("expected flat map payload, got %T", raw)
	}
	if payload["anything"] != "goes" {
		t.Errorf("expected raw passthrough, got %v", payload)
	}
	if payload["multi"] != "first" {
		t.Errorf("expected first value for multi-valued key, got %q", payload["multi"])
	}
}

func TestMaterialize(t *testing.T) {
	var in CreateWidget
	issues := materialize(map[string]any{"name": "gizmo", "count": int64(3)}, &in)
	if issues != nil {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	if in.Name != "gizmo" || in.Count != 3 {
		t.Errorf("unexpected result: %+v", in)
	}
}

func TestMaterialize_TypeMismatch(t *testing.T) {
	var in CreateWidget
	issues := materialize(map[string]any{"count": "lots"}, &in)

	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %+v", issues)
	}
	if issues[0].Field != "count" {
		t.Errorf("expected issue on count, got %+v", issues[0])
	}
}
