package opal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServeDocs(t *testing.T) {
	r := New(Config{Name: "inventory"})
	r.ServeDocs("/docs")

	req := httptest.NewRequest("GET", "/docs", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("expected HTML content type, got %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "<title>inventory</title>") {
		t.Error("expected the router name as page title")
	}
	if !strings.Contains(body, `apiDescriptionUrl="/v1/openapi.json"`) {
		t.Error("expected the page to point at the document endpoint")
	}
	if !strings.Contains(body, "elements-api") {
		t.Error("expected the Stoplight Elements shell")
	}
}

func TestServeDocs_CustomTitle(t *testing.T) {
	r := New(Config{Name: "inventory", BaseURL: "/api"})
	r.ServeDocs("/docs", WithDocsTitle("Inventory Reference"))

	req := httptest.NewRequest("GET", "/docs", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "<title>Inventory Reference</title>") {
		t.Error("expected the overridden title")
	}
	if !strings.Contains(body, `apiDescriptionUrl="/api/openapi.json"`) {
		t.Error("expected the spec URL to follow the base URL")
	}
}

func TestServeDocs_NotRegisteredByDefault(t *testing.T) {
	r := New(Config{})

	req := httptest.NewRequest("GET", "/docs", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected the catch-all 400, got %d", w.Code)
	}
}

func TestValidate_RouteShadowsDocs(t *testing.T) {
	r := New(Config{})
	r.ServeDocs("/docs")
	r.Query("docs").URL("/docs").Handle(func(ctx context.Context, _ Empty) (Empty, error) {
		return Empty{}, nil
	})

	err := r.Validate()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !strings.Contains(err.Error(), "shadows the docs endpoint") {
		t.Errorf("expected a shadow error, got %v", err)
	}
}
