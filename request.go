package enforcerlambda

import (
	"github.com/Gi60s/openapi-enforcer-lambda/contract"
)

// Request is the contract-validated request handed to handlers. Parameters
// and body have been deserialized by the contract engine to their documented
// types; the record is built fresh per invocation and not shared.
type Request struct {
	// Body is the decoded request body, nil when the request carried none.
	Body any
	// Cookies holds the deserialized cookie parameters.
	Cookies map[string]any
	// Headers merges the raw request headers with every header parameter the
	// engine deserialized, keyed lowercase. Engine-typed values replace their
	// raw string form.
	Headers map[string]any
	// Method is the uppercased HTTP method.
	Method string
	// Operation is the matched operation's handle in the loaded document.
	Operation contract.Operation
	// PathParams holds the deserialized path parameters.
	PathParams map[string]any
	// Path is the request path without its query string.
	Path string
	// PathKey is the document path template that matched, e.g. "/pets/{id}".
	PathKey string
	// Query holds the deserialized query parameters.
	Query map[string]any

	respond func(code int, body any, headers map[string]any) (*contract.NormalizedResponse, error)
}
