package opal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"runtime/debug"

	"github.com/gorilla/schema"
)

// dispatchFunc serves one request for a route. The definition is the slot's
// current value, read by the router at request time.
type dispatchFunc func(w http.ResponseWriter, r *http.Request, def Definition)

var formDecoder = newFormDecoder()

// newFormDecoder builds the shared decoder for form-encoded mutation bodies.
// Field names follow json tags and booleans follow the same rule as query
// coercion: only the literal "true" is true.
func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.SetAliasTag("json")
	d.RegisterConverter(false, func(s string) reflect.Value {
		return reflect.ValueOf(s == "true")
	})
	return d
}

// buildDispatch assembles the typed pipeline for a handler:
// decode payload, validate, run interceptors and the handler, encode.
func buildDispatch[In, Out any](router *Router, fn Handler[In, Out]) dispatchFunc {
	return func(w http.ResponseWriter, r *http.Request, def Definition) {
		var in In
		if !def.Input.Null {
			if issues := decodePayload(w, r, def, router.maxBodySize, &in); issues != nil {
				router.respondError(w, invalidPayload(issues))
				return
			}
			if issues := validatePayload(in); issues != nil {
				router.respondError(w, invalidPayload(issues))
				return
			}
		}

		info := OpInfo{OpID: def.OpID, Kind: def.Kind}
		ctx := newRequestContext(r.Context(), w, r, info)

		out, err := invoke(ctx, router, def, info, fn, in)
		if err != nil {
			router.logger().Error("handler failed",
				slog.String("op", def.OpID),
				slog.Any("error", err))
			router.respondError(w, failureError(err))
			return
		}

		if def.CacheTTL > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(def.CacheTTL.Seconds())))
		}
		if def.Output.Null {
			writeNoContent(w)
			return
		}
		writeJSON(w, router.log, http.StatusOK, out)
	}
}

// invoke runs the interceptor chain and the handler, converting panics into
// errors so a misbehaving handler cannot take the process down.
func invoke[In, Out any](ctx context.Context, router *Router, def Definition, info OpInfo, fn Handler[In, Out], in In) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			router.logger().Error("PANIC recovered",
				slog.String("op", def.OpID),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			out = nil
			err = recoveredError(rec)
		}
	}()

	final := func(ctx context.Context, payload any) (any, error) {
		typed, ok := payload.(In)
		if !ok {
			return nil, Errorf(http.StatusInternalServerError,
				"interceptor replaced payload with incompatible type %T", payload)
		}
		return fn(ctx, typed)
	}

	interceptors := router.interceptors
	if len(def.interceptors) > 0 {
		combined := make([]UnaryInterceptor, 0, len(interceptors)+len(def.interceptors))
		combined = append(combined, interceptors...)
		combined = append(combined, def.interceptors...)
		interceptors = combined
	}

	return chain(interceptors, info, final)(ctx, in)
}

// decodePayload extracts the typed input from the request: body for POST
// and PUT, coerced query parameters for everything else.
func decodePayload[In any](w http.ResponseWriter, r *http.Request, def Definition, maxBody int64, in *In) []Issue {
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		return decodeBody(w, r, maxBody, in)
	}
	return materialize(coerceQuery(r.URL.Query(), def.Input), in)
}

// decodeBody reads a JSON or form-encoded request body into in.
func decodeBody[In any](w http.ResponseWriter, r *http.Request, maxBody int64, in *In) []Issue {
	if r.Body == nil {
		return nil
	}
	if maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}

	if isFormEncoded(r.Header.Get("Content-Type")) {
		return decodeForm(r, in)
	}

	err := json.NewDecoder(r.Body).Decode(in)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		// An absent body decodes to the zero value; validation decides
		// whether that is acceptable.
		return nil
	default:
		return decodeIssues(err)
	}
}

// isFormEncoded reports whether the content type is a form-encoded body.
func isFormEncoded(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded"
}

// decodeForm decodes a form-encoded body. gorilla/schema wants a pointer to
// a struct, so pointer input types allocate their element first.
func decodeForm[In any](r *http.Request, in *In) []Issue {
	if err := r.ParseForm(); err != nil {
		return []Issue{{Message: err.Error()}}
	}

	if t := reflect.TypeFor[In](); t.Kind() == reflect.Pointer {
		v := reflect.New(t.Elem())
		if err := formDecoder.Decode(v.Interface(), r.PostForm); err != nil {
			return decodeIssues(err)
		}
		reflect.ValueOf(in).Elem().Set(v)
		return nil
	}

	if err := formDecoder.Decode(in, r.PostForm); err != nil {
		return decodeIssues(err)
	}
	return nil
}
