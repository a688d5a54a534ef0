package opal

import (
	"context"
)

// Invoker is the next step in an interceptor chain: ultimately the handler
// itself. The payload is the decoded, validated input value.
type Invoker func(ctx context.Context, payload any) (any, error)

// UnaryInterceptor wraps handler execution. Interceptors can inspect or
// replace the payload before calling next, inspect the result after, attach
// context values, or short-circuit by returning an error without calling
// next. An error from an interceptor is reported exactly like a handler
// failure.
//
//	func timing(ctx context.Context, op opal.OpInfo, payload any, next opal.Invoker) (any, error) {
//		start := time.Now()
//		out, err := next(ctx, payload)
//		slog.Info("op finished", "op", op.OpID, "took", time.Since(start))
//		return out, err
//	}
type UnaryInterceptor func(ctx context.Context, op OpInfo, payload any, next Invoker) (any, error)

// chain composes interceptors around a final invoker. The first interceptor
// in the slice is the outermost one.
func chain(interceptors []UnaryInterceptor, op OpInfo, final Invoker) Invoker {
	invoke := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic := interceptors[i]
		next := invoke
		invoke = func(ctx context.Context, payload any) (any, error) {
			return ic(ctx, op, payload, next)
		}
	}
	return invoke
}
