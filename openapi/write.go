package openapi

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// JSON renders the document as indented JSON with a trailing newline.
// Map keys serialize in sorted order, so output is deterministic.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}

// YAML renders the document as YAML. The document is round-tripped through
// JSON first so that field names follow the json tags rather than Go's
// default lower-casing, and map keys come out sorted.
func (d *Document) YAML() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}

// WriteJSON writes the document as indented JSON to w.
func (d *Document) WriteJSON(w io.Writer) error {
	data, err := d.JSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteYAML writes the document as YAML to w.
func (d *Document) WriteYAML(w io.Writer) error {
	data, err := d.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFiles writes openapi.json and openapi.yaml into dir, creating the
// directory if needed.
func (d *Document) WriteFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	jsonData, err := d.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "openapi.json"), jsonData, 0o644); err != nil {
		return fmt.Errorf("write openapi.json: %w", err)
	}

	yamlData, err := d.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "openapi.yaml"), yamlData, 0o644); err != nil {
		return fmt.Errorf("write openapi.yaml: %w", err)
	}

	return nil
}
