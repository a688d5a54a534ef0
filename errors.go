package opal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

// Fixed wire messages. The envelope shape is part of the public contract:
// clients match on these strings.
const (
	// MessageInvalidPayload is returned with every 400 validation failure.
	MessageInvalidPayload = "Invalid request payload sent"

	// MessageNoRoute is returned by the catch-all for unmatched requests.
	MessageNoRoute = "No route found"

	// MessageInternal is the fallback for failures that carry no usable
	// message of their own, and for all masked server errors.
	MessageInternal = "Internal server error occured"
)

// Error is the JSON error envelope. Status selects the HTTP status code and
// is not serialized; clients see only message and, for validation failures,
// the field-level issues.
type Error struct {
	Status  int     `json:"-"`
	Message string  `json:"message"`
	Issues  []Issue `json:"errors,omitempty"`
}

// Issue is a single field-level validation problem.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates an error with an explicit HTTP status. Handlers can
// return one to control the response status directly.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Errorf creates an error with a formatted message.
func Errorf(status int, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// invalidPayload builds the 400 envelope for a failed decode or validation.
func invalidPayload(issues []Issue) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: MessageInvalidPayload,
		Issues:  issues,
	}
}

// noRoute builds the catch-all envelope. Unmatched requests answer 400, not
// 404, so every error the service emits has the same shape.
func noRoute() *Error {
	return &Error{Status: http.StatusBadRequest, Message: MessageNoRoute}
}

// failureError maps an error returned by a handler (or an interceptor) to
// the wire envelope. A *Error passes through with its own status; anything
// else is a 500 carrying the error's message.
func failureError(err error) *Error {
	var opErr *Error
	if errors.As(err, &opErr) {
		if opErr.Status == 0 {
			opErr.Status = http.StatusInternalServerError
		}
		return opErr
	}
	return &Error{Status: http.StatusInternalServerError, Message: err.Error()}
}

// recoveredError maps a recovered panic value to the wire envelope: a plain
// string is used verbatim, an error contributes its message, anything else
// falls back to the fixed internal-error text.
func recoveredError(v any) *Error {
	switch val := v.(type) {
	case string:
		return &Error{Status: http.StatusInternalServerError, Message: val}
	case error:
		return failureError(val)
	default:
		return &Error{Status: http.StatusInternalServerError, Message: MessageInternal}
	}
}

// mask replaces server-error messages so internals never reach the client.
// Client errors (4xx) keep their messages.
func (e *Error) mask() *Error {
	if e.Status < http.StatusInternalServerError {
		return e
	}
	return &Error{Status: e.Status, Message: MessageInternal}
}

// decodeIssues converts a decode failure into field-level issues. JSON type
// errors and gorilla/schema errors both know which field they belong to.
func decodeIssues(err error) []Issue {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []Issue{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type),
		}}
	}

	var multi schema.MultiError
	if errors.As(err, &multi) {
		issues := make([]Issue, 0, len(multi))
		for field, fieldErr := range multi {
			issues = append(issues, Issue{Field: field, Message: fieldErr.Error()})
		}
		return issues
	}

	return []Issue{{Message: err.Error()}}
}

// validationIssues converts validator errors into field-level issues.
func validationIssues(err error) []Issue {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return []Issue{{Message: err.Error()}}
	}

	issues := make([]Issue, 0, len(valErrs))
	for _, ve := range valErrs {
		issues = append(issues, Issue{
			Field:   ve.Field(),
			Message: formatIssue(ve),
		})
	}
	return issues
}

// formatIssue converts a validator.FieldError to a human-readable message.
func formatIssue(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", ve.Param())
	case "eq":
		return fmt.Sprintf("must equal %s", ve.Param())
	case "ne":
		return fmt.Sprintf("must not equal %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
