package enforcerlambda

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ValidationError reports a request the contract engine rejected: malformed
// parameters, an unmatched path or method, a disallowed query parameter, or a
// body that failed to decode. It renders as the engine's status code with the
// message as a plain-text body.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Code returns the response status, defaulting to 400 when unset.
func (e *ValidationError) Code() int {
	if e.StatusCode == 0 {
		return http.StatusBadRequest
	}
	return e.StatusCode
}

// RouteConfigurationError reports a document whose routing metadata cannot be
// resolved against the supplied controller table. The message is deliberately
// verbose: it names the metadata keys or table entries the document author
// must fix, and renders as a 500 body during development.
type RouteConfigurationError struct {
	Message string
}

func (e *RouteConfigurationError) Error() string {
	return e.Message
}

func newRouteConfigurationError(format string, args ...any) *RouteConfigurationError {
	return &RouteConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ServerError reports a fault in the API implementation or its setup: a
// response that violates the contract, a failed engine load, or any
// unclassified failure. It always renders as a 500 with a fixed generic body
// so internal detail never reaches the caller.
type ServerError struct {
	Cause error

	// InvalidResponse marks outbound contract-validation failures, the one
	// server-fault class the HandleBadResponse option can opt out of.
	InvalidResponse bool
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %v", e.Cause)
}

func (e *ServerError) Unwrap() error {
	return e.Cause
}

func newServerError(cause error, message string) *ServerError {
	return &ServerError{Cause: errors.Wrap(cause, message)}
}

func newInvalidResponseError(cause error) *ServerError {
	return &ServerError{Cause: errors.Wrap(cause, "Invalid response"), InvalidResponse: true}
}
