package opal

import (
	"context"
	"strings"
	"testing"
	"time"
)

type SearchParams struct {
	Q     string `json:"q" validate:"required"`
	Limit int    `json:"limit"`
}

type SearchResult struct {
	IDs []string `json:"ids"`
}

func TestQuery_Defaults(t *testing.T) {
	r := New(Config{})
	rt := r.Query("listWidgets")

	def := rt.Definition()
	if def.OpID != "listWidgets" {
		t.Errorf("expected opID listWidgets, got %s", def.OpID)
	}
	if def.Kind != KindQuery {
		t.Errorf("expected kind query, got %s", def.Kind)
	}
	if def.Method != "GET" {
		t.Errorf("expected default method GET, got %s", def.Method)
	}
	if def.URL != "/v1/listWidgets" {
		t.Errorf("expected default URL /v1/listWidgets, got %s", def.URL)
	}
	if !def.Input.Null {
		t.Error("expected query input to default to the null payload")
	}
	if !def.Output.Null {
		t.Error("expected output to default to the null payload")
	}
}

func TestMutation_Defaults(t *testing.T) {
	r := New(Config{})
	def := r.Mutation("createWidget").Definition()

	if def.Kind != KindMutation {
		t.Errorf("expected kind mutation, got %s", def.Kind)
	}
	if def.Method != "POST" {
		t.Errorf("expected default method POST, got %s", def.Method)
	}
	if def.URL != "/v1/createWidget" {
		t.Errorf("expected default URL /v1/createWidget, got %s", def.URL)
	}
}

func TestRoute_DefaultsFollowBaseURL(t *testing.T) {
	r := New(Config{BaseURL: "/api/v2"})
	def := r.Query("listWidgets").Definition()

	if def.URL != "/api/v2/listWidgets" {
		t.Errorf("expected URL /api/v2/listWidgets, got %s", def.URL)
	}
}

func TestInput_NarrowsSharedSlot(t *testing.T) {
	r := New(Config{})
	base := r.Query("search")
	refined := Input[SearchParams](base)

	// Both handles point at the same slot, so the registry sees the
	// refined input type through either one.
	if base.slot != refined.slot {
		t.Fatalf("expected refinement to keep slot %d, got %d", base.slot, refined.slot)
	}

	def := refined.Definition()
	if def.Input.Null {
		t.Error("expected refined input to not be null")
	}
	if def.Input.Schema == nil {
		t.Fatal("expected refined input schema")
	}
	if _, ok := def.Input.Schema.Properties["q"]; !ok {
		t.Error("expected schema to declare property q")
	}
	if !def.Output.Null {
		t.Error("expected output to stay null after input refinement")
	}
}

func TestOutput_NarrowsSharedSlot(t *testing.T) {
	r := New(Config{})
	rt := Output[SearchResult](r.Query("search"))

	def := rt.Definition()
	if def.Output.Null {
		t.Error("expected refined output to not be null")
	}
	if _, ok := def.Output.Schema.Properties["ids"]; !ok {
		t.Error("expected schema to declare property ids")
	}
}

func TestInput_AfterHandlePanics(t *testing.T) {
	r := New(Config{})
	rt := Output[SearchResult](Input[SearchParams](r.Query("search"))).
		Handle(func(ctx context.Context, in SearchParams) (SearchResult, error) {
			return SearchResult{}, nil
		})

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when narrowing input after Handle")
		}
		msg, ok := rec.(string)
		if !ok || !strings.Contains(msg, "input type changed after handler was attached") {
			t.Errorf("unexpected panic value: %v", rec)
		}
	}()
	Input[SearchResult](rt)
}

func TestOutput_AfterHandlePanics(t *testing.T) {
	r := New(Config{})
	rt := r.Query("ping").Handle(func(ctx context.Context, _ Empty) (Empty, error) {
		return Empty{}, nil
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when narrowing output after Handle")
		}
	}()
	Output[SearchResult](rt)
}

func TestHandle_NilHandlerPanics(t *testing.T) {
	r := New(Config{})
	rt := r.Query("ping")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil handler")
		}
	}()
	rt.Handle(nil)
}

func TestHandle_TwicePanics(t *testing.T) {
	r := New(Config{})
	fn := func(ctx context.Context, _ Empty) (Empty, error) { return Empty{}, nil }
	rt := r.Query("ping").Handle(fn)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for second Handle call")
		}
	}()
	rt.Handle(fn)
}

func TestRoute_BuilderSetters(t *testing.T) {
	r := New(Config{})
	rt := r.Mutation("createWidget").
		Method("put").
		URL("widgets/create").
		Summary("Create a widget").
		Description("Creates a widget and returns it.").
		Tags("widgets", "write").
		Deprecated().
		Cache(30 * time.Second)

	def := rt.Definition()
	if def.Method != "PUT" {
		t.Errorf("expected method PUT, got %s", def.Method)
	}
	if def.URL != "/widgets/create" {
		t.Errorf("expected URL to gain leading slash, got %s", def.URL)
	}
	if def.Summary != "Create a widget" {
		t.Errorf("unexpected summary %q", def.Summary)
	}
	if def.Description == "" {
		t.Error("expected description to be set")
	}
	if len(def.Tags) != 2 {
		t.Errorf("expected 2 tags, got %d", len(def.Tags))
	}
	if !def.Deprecated {
		t.Error("expected deprecated to be set")
	}
	if def.CacheTTL != 30*time.Second {
		t.Errorf("expected cache TTL 30s, got %v", def.CacheTTL)
	}
}

func TestRoute_HasHandler(t *testing.T) {
	r := New(Config{})
	rt := r.Query("ping")

	if rt.Definition().HasHandler() {
		t.Error("expected no handler before Handle")
	}

	rt.Handle(func(ctx context.Context, _ Empty) (Empty, error) { return Empty{}, nil })
	if !rt.Definition().HasHandler() {
		t.Error("expected handler after Handle")
	}
}

func TestRoute_WithInterceptor(t *testing.T) {
	r := New(Config{})
	ic := func(ctx context.Context, op OpInfo, payload any, next Invoker) (any, error) {
		return next(ctx, payload)
	}

	rt := r.Query("ping").WithInterceptor(ic).WithInterceptor(ic)
	if got := len(rt.Definition().interceptors); got != 2 {
		t.Errorf("expected 2 interceptors, got %d", got)
	}
}

func TestRouter_DuplicateOpIDPanics(t *testing.T) {
	r := New(Config{})
	r.Query("listWidgets")

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic for duplicate operation id")
		}
		if msg, ok := rec.(string); !ok || !strings.Contains(msg, "duplicate operation id") {
			t.Errorf("unexpected panic value: %v", rec)
		}
	}()
	r.Mutation("listWidgets")
}

func TestRouter_EmptyOpIDPanics(t *testing.T) {
	r := New(Config{})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty operation id")
		}
	}()
	r.Query("")
}

func TestRouter_DefinitionLookup(t *testing.T) {
	r := New(Config{})
	r.Query("listWidgets")

	def, ok := r.Definition("listWidgets")
	if !ok {
		t.Fatal("expected definition for listWidgets")
	}
	if def.OpID != "listWidgets" {
		t.Errorf("unexpected opID %s", def.OpID)
	}

	if _, ok := r.Definition("missing"); ok {
		t.Error("expected no definition for unknown opID")
	}
}
