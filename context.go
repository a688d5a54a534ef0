package opal

import (
	"context"
	"net/http"
)

type contextKey struct {
	name string
}

var (
	requestKey = &contextKey{"request"}
	writerKey  = &contextKey{"writer"}
	opKey      = &contextKey{"op"}
	metaKey    = &contextKey{"meta"}
)

// OpInfo identifies the operation being dispatched.
type OpInfo struct {
	OpID string
	Kind Kind
}

// RequestFromContext returns the HTTP request from the context, or nil when
// the handler was not invoked through a Router.
func RequestFromContext(ctx context.Context) *http.Request {
	if r, ok := ctx.Value(requestKey).(*http.Request); ok {
		return r
	}
	return nil
}

// SetHeader sets a response header. It is a no-op when the handler was not
// invoked through a Router.
func SetHeader(ctx context.Context, key, value string) {
	if w, ok := ctx.Value(writerKey).(http.ResponseWriter); ok {
		w.Header().Set(key, value)
	}
}

// OperationFromContext returns the operation being dispatched.
func OperationFromContext(ctx context.Context) (OpInfo, bool) {
	if info, ok := ctx.Value(opKey).(OpInfo); ok {
		return info, true
	}
	return OpInfo{}, false
}

// Meta returns the request metadata: headers flattened to single values.
// Multi-valued headers keep their first value only.
func Meta(ctx context.Context) map[string]string {
	if m, ok := ctx.Value(metaKey).(map[string]string); ok {
		return m
	}
	return nil
}

// newRequestContext builds the per-request context handed to interceptors
// and handlers.
func newRequestContext(ctx context.Context, w http.ResponseWriter, r *http.Request, info OpInfo) context.Context {
	ctx = context.WithValue(ctx, writerKey, w)
	ctx = context.WithValue(ctx, requestKey, r)
	ctx = context.WithValue(ctx, opKey, info)
	ctx = context.WithValue(ctx, metaKey, flattenHeaders(r.Header))
	return ctx
}

// flattenHeaders collapses each header to its first value.
func flattenHeaders(h http.Header) map[string]string {
	meta := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			meta[k] = vs[0]
		}
	}
	return meta
}
