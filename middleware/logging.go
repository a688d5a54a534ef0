package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/opalrpc/opal"
)

// LoggingInterceptor returns an interceptor that logs every operation call
// using slog. It logs the start and end of each call, including the operation
// id, kind, duration and error status.
func LoggingInterceptor(logger *slog.Logger) opal.UnaryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, op opal.OpInfo, payload any, next opal.Invoker) (any, error) {
		start := time.Now()

		logger.InfoContext(ctx, "operation started",
			slog.String("op", op.OpID),
			slog.String("kind", string(op.Kind)),
		)

		res, err := next(ctx, payload)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "operation failed",
				slog.String("op", op.OpID),
				slog.String("kind", string(op.Kind)),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
		} else {
			logger.InfoContext(ctx, "operation completed",
				slog.String("op", op.OpID),
				slog.String("kind", string(op.Kind)),
				slog.Duration("duration", duration),
			)
		}

		return res, err
	}
}

// responseRecorder wraps http.ResponseWriter to capture the status code and
// the number of body bytes written.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter (supports http.ResponseController).
func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// AccessLog returns an HTTP middleware that logs one line per request:
// method, path, status, latency, response size and remote address. If the
// request carries an id assigned by RequestID it is included as request_id.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("latency", time.Since(start)),
				slog.Int("size", rec.size),
				slog.String("remote", r.RemoteAddr),
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}

			logger.LogAttrs(r.Context(), slog.LevelInfo, "request", attrs...)
		})
	}
}
