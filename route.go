package opal

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"
)

// Kind distinguishes read operations from state-changing ones.
type Kind string

const (
	KindQuery    Kind = "query"
	KindMutation Kind = "mutation"
)

// defaultMethod maps an operation kind to its HTTP method.
func (k Kind) defaultMethod() string {
	if k == KindQuery {
		return http.MethodGet
	}
	return http.MethodPost
}

// Handler is the business callback for one operation.
type Handler[In, Out any] func(ctx context.Context, in In) (Out, error)

// Definition is the resolved state of one operation: identity, routing,
// schema descriptors, and the bound dispatch function. Every routing field
// is final when the definition is created; refinements replace the whole
// value in the owning router's registry slot rather than patching it later.
type Definition struct {
	OpID        string
	Kind        Kind
	Method      string
	URL         string
	Input       Descriptor
	Output      Descriptor
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool
	CacheTTL    time.Duration

	interceptors []UnaryInterceptor
	dispatch     dispatchFunc
}

// HasHandler reports whether a handler is attached yet.
func (d Definition) HasHandler() bool {
	return d.dispatch != nil
}

// Route is a typed handle on one registry slot. Refinement calls return a
// handle with narrowed type parameters, but every handle for an operation
// shares the same slot, so the router always dispatches against the latest
// definition, never a stale snapshot.
type Route[In, Out any] struct {
	router *Router
	slot   int
}

// newRoute appends a fully-resolved definition: method and URL defaults are
// computed here, never filled in later.
func newRoute[In, Out any](r *Router, opID string, kind Kind) *Route[In, Out] {
	def := Definition{
		OpID:   opID,
		Kind:   kind,
		Method: kind.defaultMethod(),
		URL:    defaultURL(r.cfg.BaseURL, opID),
		Input:  descriptorFor(reflect.TypeFor[In]()),
		Output: descriptorFor(reflect.TypeFor[Out]()),
	}
	slot := r.appendRoute(def)
	return &Route[In, Out]{router: r, slot: slot}
}

// defaultURL joins the router's base path with the operation id.
func defaultURL(baseURL, opID string) string {
	return baseURL + "/" + opID
}

// Input returns a handle whose input type is narrowed to NewIn, regenerating
// the input descriptor. The remaining type parameters are inferred:
//
//	opal.Input[SearchParams](r.Query("search"))
//
// Narrowing after a handler is attached panics: the dispatch pipeline was
// built against the old type.
func Input[NewIn any, In, Out any](rt *Route[In, Out]) *Route[NewIn, Out] {
	def := rt.router.definition(rt.slot)
	if def.dispatch != nil {
		panic(fmt.Sprintf("opal: %s: input type changed after handler was attached", def.OpID))
	}
	def.Input = descriptorFor(reflect.TypeFor[NewIn]())
	rt.router.update(rt.slot, def)
	return &Route[NewIn, Out]{router: rt.router, slot: rt.slot}
}

// Output returns a handle whose output type is narrowed to NewOut. See
// Input for the narrowing rules.
func Output[NewOut any, In, Out any](rt *Route[In, Out]) *Route[In, NewOut] {
	def := rt.router.definition(rt.slot)
	if def.dispatch != nil {
		panic(fmt.Sprintf("opal: %s: output type changed after handler was attached", def.OpID))
	}
	def.Output = descriptorFor(reflect.TypeFor[NewOut]())
	rt.router.update(rt.slot, def)
	return &Route[In, NewOut]{router: rt.router, slot: rt.slot}
}

// Handle attaches the business callback and builds the dispatch pipeline
// for the route's current input and output types.
func (rt *Route[In, Out]) Handle(fn Handler[In, Out]) *Route[In, Out] {
	def := rt.router.definition(rt.slot)
	if fn == nil {
		panic(fmt.Sprintf("opal: %s: nil handler", def.OpID))
	}
	if def.dispatch != nil {
		panic(fmt.Sprintf("opal: %s: handler already attached", def.OpID))
	}
	def.dispatch = buildDispatch(rt.router, fn)
	rt.router.update(rt.slot, def)
	return rt
}

// Method overrides the HTTP method.
func (rt *Route[In, Out]) Method(method string) *Route[In, Out] {
	def := rt.router.definition(rt.slot)
	def.Method = strings.ToUpper(method)
	rt.router.update(rt.slot, def)
	return rt
}

// URL overrides the default {baseURL}/{opID} path.
func (rt *Route[In, Out]) URL(url string) *Route[In, Out] {
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	def := rt.router.definition(rt.slot)
	def.URL = url
	rt.router.update(rt.slot, def)
	return rt
}

// Summary sets the operation summary for the generated document.
func (rt *Route[In, Out]) Summary(s string) *Route[In, Out] {
	def := rt.router.definition(rt.slot)
	def.Summary = s
	rt.router.update(rt.slot, def)
	return rt
}

// Description sets the operation description for the generated document.
func (rt *Route[In, Out]) Description(s string) *Route[In, Out] {
	def := rt.router.definition(rt.slot)
	def.Description = s
	rt.router.update(rt.slot, def)
	return rt
}

// Tags sets the operation tags for the generated document.
func (rt *Route[In, Out]) Tags(tags ...string) *Route[In, Out] {
	def := rt.router.definition(rt.slot)
	def.Tags = tags
	rt.router.update(rt.slot, def)
	return rt
}

// Deprecated marks the operation deprecated in the generated document.
func (rt *Route[In, Out]) Deprecated() *Route[In, Out] {
	def := rt.router.definition(rt.slot)
	def.Deprecated = true
	rt.router.update(rt.slot, def)
	return rt
}

// Cache sets the Cache-Control max-age sent with successful responses.
func (rt *Route[In, Out]) Cache(ttl time.Duration) *Route[In, Out] {
	def := rt.router.definition(rt.slot)
	def.CacheTTL = ttl
	rt.router.update(rt.slot, def)
	return rt
}

// WithInterceptor adds a route-level interceptor. Route interceptors run
// after the router's global interceptors, in the order added.
func (rt *Route[In, Out]) WithInterceptor(ic UnaryInterceptor) *Route[In, Out] {
	def := rt.router.definition(rt.slot)
	def.interceptors = append(def.interceptors, ic)
	rt.router.update(rt.slot, def)
	return rt
}

// Definition returns a snapshot of the route's current definition.
func (rt *Route[In, Out]) Definition() Definition {
	return rt.router.definition(rt.slot)
}
