package opal

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Empty is the null-sentinel payload type. A route whose input is Empty
// expects no request payload; a route whose output is Empty answers
// 204 No Content. Query inputs and mutation outputs default to it.
//
// Example:
//
//	opal.Input[PurgeRequest](r.Mutation("purgeCache")).
//		Handle(func(ctx context.Context, in PurgeRequest) (opal.Empty, error) {
//			return opal.Empty{}, cache.Purge(ctx, in.Scope)
//		})
type Empty struct{}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers already sent, nothing we can do. Log for debugging.
		loggerOrDefault(logger).Error("failed to encode response", slog.Any("error", err))
	}
}

// writeNoContent answers 204 with no body.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError writes the error envelope with its status.
func writeError(w http.ResponseWriter, logger *slog.Logger, e *Error) {
	writeJSON(w, logger, e.Status, e)
}

// WriteError writes e to w using the same JSON envelope the router produces.
// It is intended for middleware and handlers that answer outside a dispatch,
// so their failures look like everyone else's.
func WriteError(w http.ResponseWriter, e *Error) {
	writeError(w, nil, e)
}

// loggerOrDefault returns the given logger, or slog.Default when none is set.
func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
