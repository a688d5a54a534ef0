// Package opal is a typed RPC layer over net/http: operations are declared
// as queries or mutations with Go input/output types, dispatched with
// schema-driven validation and coercion, and described by a generated
// OpenAPI 3.1 document.
//
//	r := opal.New(opal.Config{Name: "inventory"})
//
//	opal.Output[[]Widget](r.Query("listWidgets")).
//		Handle(func(ctx context.Context, _ opal.Empty) ([]Widget, error) {
//			return store.List(ctx)
//		})
//
//	opal.Output[Widget](opal.Input[CreateWidget](r.Mutation("createWidget"))).
//		Handle(func(ctx context.Context, in CreateWidget) (Widget, error) {
//			return store.Create(ctx, in)
//		})
//
//	log.Fatal(r.ListenAndServe(context.Background()))
package opal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultPort    = 3000
	DefaultBaseURL = "/v1"

	// defaultMaxBodySize caps request bodies at 1MB unless overridden.
	defaultMaxBodySize = 1 << 20
)

// Config holds server configuration. Zero fields take defaults; the
// resolved values never change after New.
type Config struct {
	// Name titles the generated document and is reported by GET /info.
	Name string

	// Port is the listening port for ListenAndServe. Default 3000.
	Port int

	// BaseURL prefixes every default route URL and the documentation
	// endpoints. Default "/v1".
	BaseURL string

	// Version is the API version stamped into the generated document.
	Version string
}

// withDefaults resolves every zero field. Two-phase construction: the
// router only ever sees a complete configuration.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "opal"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	c.BaseURL = normalizeBaseURL(c.BaseURL)
	return c
}

// normalizeBaseURL forces a leading slash and strips the trailing one, so
// path joins are always {base}/{rest}. "/" means routes mount at the root.
func normalizeBaseURL(base string) string {
	if base == "" {
		return DefaultBaseURL
	}
	base = "/" + strings.Trim(base, "/")
	if base == "/" {
		return ""
	}
	return base
}

// Router is an ordered registry of operation definitions. It is mutated by
// Query/Mutation calls during startup and read-only once serving begins;
// the lock exists so builder refinements and request-time snapshot reads
// never observe a half-written definition.
type Router struct {
	cfg Config

	mu    sync.RWMutex
	defs  []Definition
	index map[string]int // opID → slot
	gen   uint64         // bumped on every registry write

	log          *slog.Logger
	middlewares  []func(http.Handler) http.Handler
	interceptors []UnaryInterceptor
	maskErrors   bool
	maxBodySize  int64
	docs         *docsConfig

	spec specCache
}

// New creates a Router with the given configuration.
func New(cfg Config) *Router {
	return &Router{
		cfg:         cfg.withDefaults(),
		index:       make(map[string]int),
		maxBodySize: defaultMaxBodySize,
	}
}

// WithLogger sets a custom logger. If not set, slog.Default() is used.
func (r *Router) WithLogger(logger *slog.Logger) *Router {
	r.log = logger
	return r
}

// WithMiddleware adds an HTTP middleware around the whole handler.
// Middleware is applied in the order added (first added is outermost).
func (r *Router) WithMiddleware(mw func(http.Handler) http.Handler) *Router {
	r.middlewares = append(r.middlewares, mw)
	return r
}

// WithInterceptor adds a global interceptor. Global interceptors run before
// route-level ones, in the order added.
func (r *Router) WithInterceptor(ic UnaryInterceptor) *Router {
	r.interceptors = append(r.interceptors, ic)
	return r
}

// WithMaskedErrors replaces all 5xx messages with a fixed string. Useful in
// production so handler failures never leak internals; the original error
// is still logged.
func (r *Router) WithMaskedErrors() *Router {
	r.maskErrors = true
	return r
}

// WithMaxRequestBodySize caps request body size in bytes. Zero disables the
// cap. Default is 1MB.
func (r *Router) WithMaxRequestBodySize(size int64) *Router {
	r.maxBodySize = size
	return r
}

// Query registers a read operation: GET, no input, no output until refined.
func (r *Router) Query(opID string) *Route[Empty, Empty] {
	return newRoute[Empty, Empty](r, opID, KindQuery)
}

// Mutation registers a state-changing operation: POST, no input, no output
// until refined.
func (r *Router) Mutation(opID string) *Route[Empty, Empty] {
	return newRoute[Empty, Empty](r, opID, KindMutation)
}

// Name returns the configured service name.
func (r *Router) Name() string { return r.cfg.Name }

// BaseURL returns the resolved base path.
func (r *Router) BaseURL() string { return r.cfg.BaseURL }

// Addr returns the listen address derived from the configured port.
func (r *Router) Addr() string { return fmt.Sprintf(":%d", r.cfg.Port) }

// appendRoute adds a definition and returns its slot index. Operation ids
// are unique within a router; reusing one is a configuration bug surfaced
// immediately.
func (r *Router) appendRoute(def Definition) int {
	if def.OpID == "" {
		panic("opal: operation id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[def.OpID]; exists {
		panic(fmt.Sprintf("opal: duplicate operation id %q", def.OpID))
	}

	slot := len(r.defs)
	r.defs = append(r.defs, def)
	r.index[def.OpID] = slot
	r.gen++
	return slot
}

// definition returns the current value of a slot.
func (r *Router) definition(slot int) Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[slot]
}

// update replaces the definition in a slot. Builder refinements call this,
// so dispatch always sees the most-refined definition.
func (r *Router) update(slot int, def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[slot] = def
	r.gen++
}

// snapshot copies the registry in registration order.
func (r *Router) snapshot() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Definition(nil), r.defs...)
}

// Operations returns the registered definitions in registration order.
func (r *Router) Operations() []Definition {
	return r.snapshot()
}

// Definition returns the current definition for an operation id.
func (r *Router) Definition(opID string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if slot, ok := r.index[opID]; ok {
		return r.defs[slot], true
	}
	return Definition{}, false
}

// Validate reports configuration problems: routes without handlers,
// method+URL collisions, and routes shadowing the fixed endpoints. This is
// what `opal check` runs before a deploy.
func (r *Router) Validate() error {
	reserved := map[string]string{
		"GET /info": "info endpoint",
		"GET " + r.cfg.BaseURL + "/openapi.json": "document endpoint",
		"GET " + r.cfg.BaseURL + "/openapi.yaml": "document endpoint",
	}
	if r.docs != nil {
		reserved["GET "+r.docs.Path] = "docs endpoint"
	}

	var errs []error
	seen := make(map[string]string)
	for _, def := range r.snapshot() {
		if def.dispatch == nil {
			errs = append(errs, fmt.Errorf("route %s: no handler attached", def.OpID))
		}

		key := def.Method + " " + def.URL
		if what, ok := reserved[key]; ok {
			errs = append(errs, fmt.Errorf("route %s: %s shadows the %s", def.OpID, key, what))
		}
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("route %s: %s already registered by %s", def.OpID, key, prev))
		} else {
			seen[key] = def.OpID
		}
	}
	return errors.Join(errs...)
}

// Install registers the fixed endpoints, every route, and the catch-all
// onto mux, in that order. The catch-all pattern absorbs both unmatched
// paths and method mismatches, so every unrouted request gets the same
// 400 envelope instead of the mux's 404/405.
func (r *Router) Install(mux *http.ServeMux) {
	mux.HandleFunc("GET /info", r.serveInfo)
	mux.HandleFunc("GET "+r.cfg.BaseURL+"/openapi.json", r.serveSpecJSON)
	mux.HandleFunc("GET "+r.cfg.BaseURL+"/openapi.yaml", r.serveSpecYAML)
	if r.docs != nil {
		mux.HandleFunc("GET "+r.docs.Path, r.serveDocsPage)
	}

	for slot, def := range r.snapshot() {
		mux.Handle(def.Method+" "+def.URL, r.routeHandler(slot))
	}

	mux.HandleFunc("/", r.serveNoRoute)
}

// routeHandler serves one registry slot, reading the definition at request
// time so pre-startup refinements are always honored.
func (r *Router) routeHandler(slot int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		def := r.definition(slot)
		if def.dispatch == nil {
			r.logger().Error("route has no handler",
				slog.String("op", def.OpID),
				slog.String("url", def.URL))
			r.respondError(w, Errorf(http.StatusInternalServerError,
				"operation %s has no handler attached", def.OpID))
			return
		}
		def.dispatch(w, req, def)
	}
}

// Handler returns the complete http.Handler: a fresh mux with everything
// installed, wrapped in the configured middleware and an outermost panic
// recovery, so a panicking middleware still produces the error envelope.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	r.Install(mux)

	var h http.Handler = mux
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}
	return r.recoverPanics(h)
}

// ListenAndServe serves on the configured port until ctx is canceled, then
// shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              r.Addr(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// serveInfo answers the fixed GET /info endpoint.
func (r *Router) serveInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, r.log, http.StatusOK, map[string]string{"name": r.cfg.Name})
}

// serveNoRoute is the catch-all: uniform 400, never a bare 404.
func (r *Router) serveNoRoute(w http.ResponseWriter, _ *http.Request) {
	writeError(w, r.log, noRoute())
}

// respondError applies masking and writes the envelope.
func (r *Router) respondError(w http.ResponseWriter, e *Error) {
	if r.maskErrors {
		e = e.mask()
	}
	writeError(w, r.log, e)
}

// recoverPanics is the outer safety net for panics escaping the mux or a
// middleware; handler panics are already recovered per dispatch.
func (r *Router) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger().Error("PANIC recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())))
				r.respondError(w, recoveredError(rec))
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// logger returns the configured logger or slog.Default().
func (r *Router) logger() *slog.Logger {
	return loggerOrDefault(r.log)
}
