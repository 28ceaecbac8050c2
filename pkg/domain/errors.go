package domain

import (
	"errors"
	"fmt"
)

// Common gateway errors
var (
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrInvalidRequest     = errors.New("invalid request payload")
	ErrBackendTimeout     = errors.New("backend request timed out")
	ErrBackendHTTP        = errors.New("backend returned non-2xx status")
	ErrBackendUnreachable = errors.New("backend unreachable")
)

// BackendError describes a failed dispatch to one backend variant. It
// carries the outcome classification used for telemetry and, for
// http_error outcomes, the upstream status code.
type BackendError struct {
	Err        error
	Variant    Variant
	Outcome    Outcome
	StatusCode int
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s backend: %v (status %d)", e.Variant, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%s backend: %v", e.Variant, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ErrorResponse defines the stable JSON error model returned by the
// gateway. CorrelationID carries the request's correlation identifier
// so failures can be traced through logs and spans.
type ErrorResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ErrorCode maps an outcome classification to the machine-readable code
// surfaced in ErrorResponse.
func ErrorCode(o Outcome) string {
	switch o {
	case OutcomeTimeout:
		return "BACKEND_TIMEOUT"
	case OutcomeHTTPError:
		return "BACKEND_HTTP_ERROR"
	default:
		return "BACKEND_UNREACHABLE"
	}
}
