// Package kinengine implements the contract engine seam over kin-openapi:
// documents are loaded and validated with openapi3, matched with the
// gorillamux router and enforced with openapi3filter.
package kinengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/Gi60s/openapi-enforcer-lambda/contract"
	"github.com/Gi60s/openapi-enforcer-lambda/internal/bodycodec"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/pkg/errors"
)

// Engine enforces a loaded OpenAPI 3 document. It is safe for concurrent use;
// the document is immutable once loaded.
type Engine struct {
	doc     *openapi3.T
	router  routers.Router
	handles map[*openapi3.Operation]*operation
}

// Load reads, parses and validates the OpenAPI document at path. External
// references are resolved relative to it.
func Load(ctx context.Context, path string) (*Engine, error) {
	doc, err := newLoader(ctx).LoadFromFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load the OpenAPI document at %s", path)
	}
	return New(ctx, doc)
}

// LoadBytes parses and validates an OpenAPI document held in memory, JSON or
// YAML.
func LoadBytes(ctx context.Context, data []byte) (*Engine, error) {
	doc, err := newLoader(ctx).LoadFromData(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse the OpenAPI document")
	}
	return New(ctx, doc)
}

// New validates doc and builds an engine over it. Operation handles are
// created once here, so handles handed out across invocations compare equal.
func New(ctx context.Context, doc *openapi3.T) (*Engine, error) {
	if err := doc.Validate(ctx); err != nil {
		return nil, errors.Wrap(err, "invalid OpenAPI document")
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build the document router")
	}

	_inst := &Engine{
		doc:     doc,
		router:  router,
		handles: map[*openapi3.Operation]*operation{},
	}
	root := &scope{extensions: doc.Extensions}
	for _, item := range doc.Paths.Map() {
		enclosing := &scope{extensions: item.Extensions, parent: root}
		for _, op := range item.Operations() {
			_inst.handles[op] = &operation{
				id:         op.OperationID,
				extensions: op.Extensions,
				parent:     enclosing,
			}
		}
	}
	return _inst, nil
}

// Request matches and validates req against the document per
// contract.Engine.
func (e *Engine) Request(ctx context.Context, req contract.RequestDescriptor, opts contract.RequestOptions) (*contract.ParsedRequest, error) {
	httpReq, err := e.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	route, pathParams, err := e.router.FindRoute(httpReq)
	if err != nil {
		return nil, routeError(err)
	}
	if err := checkQueryAllowance(route, httpReq.URL.Query(), opts); err != nil {
		return nil, err
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    httpReq,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if err := openapi3filter.ValidateRequest(ctx, input); err != nil {
		return nil, validationError(err)
	}

	handle, ok := e.handles[route.Operation]
	if !ok {
		return nil, errors.Errorf("no operation handle for %s %s", route.Method, route.Path)
	}

	declared := declaredParameters(route)
	return &contract.ParsedRequest{
		Operation:    handle,
		PathKey:      route.Path,
		PathParams:   coercePathParams(pathParams, declared),
		QueryParams:  coerceQueryParams(httpReq.URL.Query(), declared),
		HeaderParams: coerceHeaderParams(req.Headers, declared),
		CookieParams: coerceCookieParams(req.Headers, declared),
		Body:         req.Body,
		Respond:      e.responder(ctx, input),
	}, nil
}

func newLoader(ctx context.Context) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true
	return loader
}

func (e *Engine) buildHTTPRequest(ctx context.Context, req contract.RequestDescriptor) (*http.Request, error) {
	raw, hasBody, err := e.serializeRequestBody(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if hasBody {
		body = strings.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), req.Path, body)
	if err != nil {
		return nil, &contract.RequestError{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("invalid request target: %v", err),
		}
	}
	httpReq.Header = req.Headers.Header()
	return httpReq, nil
}

// serializeRequestBody renders the already-decoded body back to its wire form
// so the filter can validate it against the declared media type.
func (e *Engine) serializeRequestBody(req contract.RequestDescriptor) (string, bool, error) {
	switch b := req.Body.(type) {
	case nil:
		return "", false, nil
	case string:
		return b, true, nil
	case []byte:
		return string(b), true, nil
	default:
		contentType, _ := req.Headers.Lookup("content-type")
		mediaType := bodycodec.MediaType(contentType.First())
		if mediaType == "" {
			mediaType = bodycodec.TypeJSON
		}
		raw, err := bodycodec.Encode(mediaType, b)
		if err != nil {
			return "", false, errors.Wrap(err, "failed to serialize the request body")
		}
		return raw, true, nil
	}
}

func (e *Engine) responder(ctx context.Context, input *openapi3filter.RequestValidationInput) func(int, any, map[string]any) (*contract.NormalizedResponse, error) {
	return func(code int, body any, headers map[string]any) (*contract.NormalizedResponse, error) {
		raw, hasBody, err := serializeResponseBody(body)
		if err != nil {
			return nil, err
		}

		respInput := &openapi3filter.ResponseValidationInput{
			RequestValidationInput: input,
			Status:                 code,
			Header:                 responseHeader(headers),
			Options:                &openapi3filter.Options{IncludeResponseStatus: true},
		}
		if hasBody {
			respInput.SetBodyBytes([]byte(raw))
		}
		if err := openapi3filter.ValidateResponse(ctx, respInput); err != nil {
			return nil, err
		}
		return &contract.NormalizedResponse{StatusCode: code, Headers: headers, Body: body}, nil
	}
}

func serializeResponseBody(body any) (string, bool, error) {
	switch b := body.(type) {
	case nil:
		return "", false, nil
	case string:
		return b, true, nil
	case []byte:
		return string(b), true, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return "", false, errors.Wrap(err, "failed to serialize the response body")
		}
		return string(data), true, nil
	}
}

func responseHeader(headers map[string]any) http.Header {
	header := make(http.Header, len(headers))
	for name, value := range headers {
		switch v := value.(type) {
		case string:
			header.Set(name, v)
		case []string:
			for _, item := range v {
				header.Add(name, item)
			}
		default:
			header.Set(name, fmt.Sprint(v))
		}
	}
	return header
}

func routeError(err error) error {
	switch {
	case errors.Is(err, routers.ErrPathNotFound):
		return &contract.RequestError{StatusCode: http.StatusNotFound, Message: "Path not found"}
	case errors.Is(err, routers.ErrMethodNotAllowed):
		return &contract.RequestError{StatusCode: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}
	return &contract.RequestError{StatusCode: http.StatusNotFound, Message: err.Error()}
}

func validationError(err error) error {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		return &contract.RequestError{StatusCode: http.StatusBadRequest, Message: reqErr.Error()}
	}
	var secErr *openapi3filter.SecurityRequirementsError
	if errors.As(err, &secErr) {
		return &contract.RequestError{StatusCode: http.StatusUnauthorized, Message: secErr.Error()}
	}
	return errors.Wrap(err, "request validation failed")
}

// checkQueryAllowance rejects query parameters the document does not declare.
// The filter ignores unknown query parameters, so the strictness lives here.
func checkQueryAllowance(route *routers.Route, query map[string][]string, opts contract.RequestOptions) error {
	if opts.AllowOtherQueryParameters {
		return nil
	}

	declared := map[string]bool{}
	for _, p := range declaredParameters(route) {
		if p.In == openapi3.ParameterInQuery {
			declared[p.Name] = true
		}
	}

	var names []string
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if declared[name] || containsName(opts.AllowedQueryParameters, name) {
			continue
		}
		return &contract.RequestError{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("query parameter not allowed: %s", name),
		}
	}
	return nil
}

// declaredParameters merges operation and path item parameters; the operation
// overrides the path item on a (location, name) collision.
func declaredParameters(route *routers.Route) []*openapi3.Parameter {
	seen := map[string]bool{}
	var out []*openapi3.Parameter
	collect := func(set openapi3.Parameters) {
		for _, ref := range set {
			p := ref.Value
			if p == nil {
				continue
			}
			key := p.In + " " + p.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	collect(route.Operation.Parameters)
	collect(route.PathItem.Parameters)
	return out
}

func containsName(names []string, name string) bool {
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}
	return false
}

// scope is the handle for a path item or the document root in an operation's
// ancestor chain.
type scope struct {
	extensions map[string]any
	parent     *scope
}

func (s *scope) ID() string { return "" }

func (s *scope) Extension(name string) (any, bool) {
	value, ok := s.extensions[name]
	return value, ok
}

func (s *scope) Parent() contract.Operation {
	if s.parent == nil {
		return nil
	}
	return s.parent
}

type operation struct {
	id         string
	extensions map[string]any
	parent     *scope
}

func (o *operation) ID() string { return o.id }

func (o *operation) Extension(name string) (any, bool) {
	value, ok := o.extensions[name]
	return value, ok
}

func (o *operation) Parent() contract.Operation {
	if o.parent == nil {
		return nil
	}
	return o.parent
}
