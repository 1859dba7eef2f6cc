package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and repositories use these constants
// instead of hardcoded strings so the API layer can map them to HTTP
// statuses consistently.
const (
	// Validation (400): each aborts the whole generation pass for the plan.
	ErrCodeInvalidPattern    ErrorCode = "validation_invalid_pattern"
	ErrCodeInvalidWindow     ErrorCode = "validation_invalid_window"
	ErrCodeInvalidCrewPolicy ErrorCode = "validation_invalid_crew_policy"
	ErrCodeInvalidDateRange  ErrorCode = "validation_invalid_date_range"
	ErrCodeInvalidTimezone   ErrorCode = "validation_invalid_timezone"
	ErrCodeInvalidRequest    ErrorCode = "validation_invalid_request"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Not Found (404)
	ErrCodeNotFoundPlan ErrorCode = "not_found_plan"

	// Conflict (409)
	// conflict_occurrence_exists is the materialization conflict: the
	// boundary already holds a job for (plan, date). Recoverable; the
	// occurrence is dropped and the pass continues.
	ErrCodeOccurrenceExists ErrorCode = "conflict_occurrence_exists"
	// conflict_clock_skew means the injected "now" precedes the plan's
	// lastRunAt. Fatal for the pass.
	ErrCodeClockSkew ErrorCode = "conflict_clock_skew"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamPlatform    ErrorCode = "upstream_platform_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All domain and handler
// errors are expressed as AppError to enable consistent formatting, HTTP
// status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged
// in, leaving the original untouched.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// WithPlan returns a copy of the error annotated with the plan ID, so the
// operator can locate the offending plan in the admin UI.
func (e *AppError) WithPlan(planID string) *AppError {
	return e.WithDetails(map[string]any{"plan_id": planID})
}

// WithDate returns a copy of the error annotated with the offending
// occurrence date.
func (e *AppError) WithDate(d CivilDate) *AppError {
	return e.WithDetails(map[string]any{"date": d.String()})
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
