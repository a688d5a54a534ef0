package opal

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/opalrpc/opal/openapi"
)

// coerceQuery builds the payload for a query-parameter request. Keys present
// in the schema's declared properties are coerced per their declared type;
// undeclared keys are dropped. An open schema (no fixed property set) passes
// the raw single-valued query map through unchanged.
func coerceQuery(query url.Values, d Descriptor) any {
	if d.Open {
		flat := make(map[string]string, len(query))
		for k, vs := range query {
			if len(vs) > 0 {
				flat[k] = vs[0]
			}
		}
		return flat
	}

	payload := make(map[string]any, len(d.Schema.Properties))
	for name, prop := range d.Schema.Properties {
		if !query.Has(name) {
			continue
		}
		payload[name] = coerceValue(query.Get(name), prop)
	}
	return payload
}

// coerceValue converts one query string per the declared property type:
// strings pass through, booleans compare against the literal "true",
// numbers parse numerically, and everything else parses as a JSON literal.
// Values that fail to parse stay strings so validation reports the mismatch
// instead of the coercion guessing.
func coerceValue(raw string, prop *openapi.Schema) any {
	switch prop.Type {
	case "string":
		return raw
	case "boolean":
		return raw == "true"
	case "integer":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	case "number":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	default:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return raw
		}
		return v
	}
}

// materialize converts a coerced payload into the route's input type via a
// JSON round-trip, so query payloads obey the same field rules as bodies.
func materialize(payload any, out any) []Issue {
	data, err := json.Marshal(payload)
	if err != nil {
		return []Issue{{Message: err.Error()}}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return decodeIssues(err)
	}
	return nil
}
