// Package contract defines the seam between the invocation adapter and an
// OpenAPI document engine. An Engine validates and deserializes an incoming
// request against a loaded contract and produces a ParsedRequest whose Respond
// hook validates and serializes the outgoing response.
package contract

import (
	"context"
	"fmt"

	"github.com/Gi60s/openapi-enforcer-lambda/params"
)

// Engine resolves raw requests against a loaded OpenAPI document.
type Engine interface {
	// Request matches the descriptor against the document, validating and
	// deserializing its parameters and body. A failure to match or validate is
	// reported as a *RequestError carrying the status the caller should
	// surface.
	Request(ctx context.Context, req RequestDescriptor, opts RequestOptions) (*ParsedRequest, error)
}

// RequestDescriptor is the raw request shape handed to an Engine. Path carries
// the query string when one is present; Headers is the merged header view.
type RequestDescriptor struct {
	Method  string
	Path    string
	Headers params.Map
	Body    any
}

// RequestOptions adjusts how strictly an Engine treats query parameters the
// document does not declare.
type RequestOptions struct {
	// AllowOtherQueryParameters permits any undeclared query parameter.
	AllowOtherQueryParameters bool
	// AllowedQueryParameters permits the named undeclared parameters only.
	// Ignored when AllowOtherQueryParameters is set.
	AllowedQueryParameters []string
}

// ParsedRequest is a request the engine accepted: parameters are deserialized
// to their schema types and the body is decoded. Respond validates a proposed
// response against the matched operation.
type ParsedRequest struct {
	// Operation is a stable handle for the matched operation. Handles compare
	// equal across invocations that match the same operation, so callers may
	// key caches on them.
	Operation Operation

	// PathKey is the document path template that matched, e.g. "/pets/{id}".
	PathKey string

	PathParams  map[string]any
	QueryParams map[string]any
	// HeaderParams is keyed by the declared parameter name, lowercased.
	HeaderParams map[string]any
	CookieParams map[string]any

	// Body is the decoded request body, nil when the request carried none.
	Body any

	// Respond checks code, body and headers against the operation's declared
	// responses and returns the serialized form. The error reports any
	// response that the document does not permit.
	Respond func(code int, body any, headers map[string]any) (*NormalizedResponse, error)
}

// NormalizedResponse is a validated, serialized response produced by
// ParsedRequest.Respond.
type NormalizedResponse struct {
	StatusCode int
	Headers    map[string]any
	Body       any
}

// Operation is a stable handle for one operation of a loaded document.
// Implementations must be comparable and return the same handle for the same
// operation on every match.
type Operation interface {
	// ID returns the document's operationId, or "" when none is declared.
	ID() string
	// Extension looks up a specification extension on the operation itself,
	// without consulting enclosing scopes.
	Extension(name string) (any, bool)
	// Parent returns the enclosing scope (path item, then document root) or
	// nil at the top. Extensions declared on ancestors apply to the operation
	// unless it overrides them.
	Parent() Operation
}

// RequestError reports a request the engine rejected, carrying the status a
// caller should answer with. Typical codes: 400 for validation failures, 404
// for unmatched paths, 405 for unmatched methods.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request rejected (%d): %s", e.StatusCode, e.Message)
}
