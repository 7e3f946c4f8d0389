// Package contracttest provides a scriptable in-memory contract.Engine for
// exercising adapter and dispatch behavior without a real document: template
// path matching, typed parameter coercion, per-status response rules, and
// extension scopes with operation → path → root inheritance.
package contracttest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/Gi60s/openapi-enforcer-lambda/contract"
	"github.com/Gi60s/openapi-enforcer-lambda/params"
)

// Engine is a fake contract engine built from scripted routes.
type Engine struct {
	root       *Scope
	pathScopes map[string]*Scope
	routes     []*Route
}

// New builds an empty fake engine.
func New(options ...EngineOption) *Engine {
	_inst := &Engine{
		root:       &Scope{extensions: map[string]any{}},
		pathScopes: map[string]*Scope{},
	}
	for _, opt := range options {
		opt(_inst)
	}
	return _inst
}

// AddRoute scripts one operation. Routes sharing a template share their path
// scope, so a path-level extension set on one is visible to the other.
func (e *Engine) AddRoute(method, template string, options ...RouteOption) *Route {
	scope, ok := e.pathScopes[template]
	if !ok {
		scope = &Scope{extensions: map[string]any{}, parent: e.root}
		e.pathScopes[template] = scope
	}
	route := &Route{
		Method:     strings.ToUpper(method),
		Template:   template,
		parent:     scope,
		extensions: map[string]any{},
		responses:  map[int]*responseRule{},
		lookups:    map[string]int{},
	}
	for _, opt := range options {
		opt(route)
	}
	e.routes = append(e.routes, route)
	return route
}

// Request implements contract.Engine.
func (e *Engine) Request(_ context.Context, req contract.RequestDescriptor, opts contract.RequestOptions) (*contract.ParsedRequest, error) {
	path, rawQuery, _ := strings.Cut(req.Path, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, &contract.RequestError{StatusCode: http.StatusBadRequest, Message: "malformed query string"}
	}

	route, captured, err := e.match(req.Method, path)
	if err != nil {
		return nil, err
	}

	if err := route.checkQueryAllowance(query, opts); err != nil {
		return nil, err
	}

	pathParams, err := route.coercePathParams(captured)
	if err != nil {
		return nil, err
	}
	queryParams, err := route.coerceQueryParams(query)
	if err != nil {
		return nil, err
	}
	headerParams, err := route.coerceHeaderParams(req.Headers)
	if err != nil {
		return nil, err
	}
	cookieParams, err := route.coerceCookieParams(req.Headers)
	if err != nil {
		return nil, err
	}

	return &contract.ParsedRequest{
		Operation:    route,
		PathKey:      route.Template,
		PathParams:   pathParams,
		QueryParams:  queryParams,
		HeaderParams: headerParams,
		CookieParams: cookieParams,
		Body:         req.Body,
		Respond:      route.respond,
	}, nil
}

func (e *Engine) match(method, path string) (*Route, map[string]string, error) {
	pathMatched := false
	for _, route := range e.routes {
		captured, ok := route.matchTemplate(path)
		if !ok {
			continue
		}
		pathMatched = true
		if route.Method == strings.ToUpper(method) {
			return route, captured, nil
		}
	}
	if pathMatched {
		return nil, nil, &contract.RequestError{StatusCode: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}
	return nil, nil, &contract.RequestError{StatusCode: http.StatusNotFound, Message: "Path not found"}
}

// Param declares one typed parameter of a scripted route.
type Param struct {
	Name     string
	Type     string
	Required bool
}

type responseRule struct {
	requiredBodyFields []string
}

// Route is a scripted operation. It doubles as the operation handle handed
// back through ParsedRequest.Operation.
type Route struct {
	Method   string
	Template string

	operationID  string
	extensions   map[string]any
	parent       *Scope
	pathParams   []Param
	queryParams  []Param
	headerParams []Param
	cookieParams []Param
	responses    map[int]*responseRule
	respondErr   error

	mu      sync.Mutex
	lookups map[string]int
}

// ID implements contract.Operation.
func (r *Route) ID() string {
	return r.operationID
}

// Extension implements contract.Operation, counting every lookup by name so
// tests can observe how often metadata resolution ran.
func (r *Route) Extension(name string) (any, bool) {
	r.mu.Lock()
	r.lookups[name]++
	r.mu.Unlock()
	value, ok := r.extensions[name]
	return value, ok
}

// Parent implements contract.Operation.
func (r *Route) Parent() contract.Operation {
	if r.parent == nil {
		return nil
	}
	return r.parent
}

// ExtensionLookups reports how many times the named extension was looked up
// on this operation handle.
func (r *Route) ExtensionLookups(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups[name]
}

func (r *Route) matchTemplate(path string) (map[string]string, bool) {
	want := strings.Split(strings.Trim(r.Template, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return nil, false
	}
	captured := map[string]string{}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			captured[strings.Trim(segment, "{}")] = got[i]
			continue
		}
		if segment != got[i] {
			return nil, false
		}
	}
	return captured, true
}

func (r *Route) checkQueryAllowance(query map[string][]string, opts contract.RequestOptions) error {
	if opts.AllowOtherQueryParameters {
		return nil
	}
	for name := range query {
		if r.declaresQuery(name) || contains(opts.AllowedQueryParameters, name) {
			continue
		}
		return &contract.RequestError{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("query parameter not allowed: %s", name),
		}
	}
	return nil
}

func (r *Route) declaresQuery(name string) bool {
	for _, p := range r.queryParams {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (r *Route) coercePathParams(captured map[string]string) (map[string]any, error) {
	coerced := make(map[string]any, len(r.pathParams))
	for _, p := range r.pathParams {
		raw, ok := captured[p.Name]
		if !ok {
			return nil, &contract.RequestError{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("missing path parameter %q", p.Name),
			}
		}
		value, err := coerce(raw, p.Type)
		if err != nil {
			return nil, &contract.RequestError{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("path parameter %q must be of type %s", p.Name, p.Type),
			}
		}
		coerced[p.Name] = value
	}
	return coerced, nil
}

func (r *Route) coerceQueryParams(query map[string][]string) (map[string]any, error) {
	coerced := make(map[string]any, len(r.queryParams))
	for _, p := range r.queryParams {
		values, ok := query[p.Name]
		if !ok || len(values) == 0 {
			if p.Required {
				return nil, &contract.RequestError{
					StatusCode: http.StatusBadRequest,
					Message:    fmt.Sprintf("missing required query parameter %q", p.Name),
				}
			}
			continue
		}
		value, err := coerce(values[0], p.Type)
		if err != nil {
			return nil, &contract.RequestError{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("query parameter %q must be of type %s", p.Name, p.Type),
			}
		}
		coerced[p.Name] = value
	}
	return coerced, nil
}

func (r *Route) coerceHeaderParams(headers params.Map) (map[string]any, error) {
	coerced := make(map[string]any, len(r.headerParams))
	for _, p := range r.headerParams {
		value, ok := headers.Lookup(p.Name)
		if !ok {
			if p.Required {
				return nil, &contract.RequestError{
					StatusCode: http.StatusBadRequest,
					Message:    fmt.Sprintf("missing required header %q", p.Name),
				}
			}
			continue
		}
		typed, err := coerce(value.First(), p.Type)
		if err != nil {
			return nil, &contract.RequestError{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("header %q must be of type %s", p.Name, p.Type),
			}
		}
		coerced[strings.ToLower(p.Name)] = typed
	}
	return coerced, nil
}

func (r *Route) coerceCookieParams(headers params.Map) (map[string]any, error) {
	coerced := make(map[string]any, len(r.cookieParams))
	if len(r.cookieParams) == 0 {
		return coerced, nil
	}
	cookies := parseCookies(headers)
	for _, p := range r.cookieParams {
		raw, ok := cookies[p.Name]
		if !ok {
			if p.Required {
				return nil, &contract.RequestError{
					StatusCode: http.StatusBadRequest,
					Message:    fmt.Sprintf("missing required cookie %q", p.Name),
				}
			}
			continue
		}
		typed, err := coerce(raw, p.Type)
		if err != nil {
			return nil, &contract.RequestError{
				StatusCode: http.StatusBadRequest,
				Message:    fmt.Sprintf("cookie %q must be of type %s", p.Name, p.Type),
			}
		}
		coerced[p.Name] = typed
	}
	return coerced, nil
}

func (r *Route) respond(code int, body any, headers map[string]any) (*contract.NormalizedResponse, error) {
	if r.respondErr != nil {
		return nil, r.respondErr
	}
	rule, ok := r.responses[code]
	if !ok {
		return nil, fmt.Errorf("status %d is not declared for %s %s", code, r.Method, r.Template)
	}
	for _, field := range rule.requiredBodyFields {
		m, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("response body for %s %s must be an object", r.Method, r.Template)
		}
		if _, ok := m[field]; !ok {
			return nil, fmt.Errorf("response body missing required field %q", field)
		}
	}
	return &contract.NormalizedResponse{StatusCode: code, Headers: headers, Body: body}, nil
}

// Scope is an enclosing metadata scope: a path item, or the document root
// when its parent is nil.
type Scope struct {
	extensions map[string]any
	parent     *Scope
}

// ID implements contract.Operation. Scopes carry no operation identifier.
func (s *Scope) ID() string {
	return ""
}

// Extension implements contract.Operation.
func (s *Scope) Extension(name string) (any, bool) {
	value, ok := s.extensions[name]
	return value, ok
}

// Parent implements contract.Operation.
func (s *Scope) Parent() contract.Operation {
	if s.parent == nil {
		return nil
	}
	return s.parent
}

func coerce(raw, typ string) (any, error) {
	switch typ {
	case "", "string":
		return raw, nil
	case "integer":
		return strconv.Atoi(raw)
	case "number":
		return strconv.ParseFloat(raw, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", typ)
	}
}

func parseCookies(headers params.Map) map[string]string {
	cookies := map[string]string{}
	header, ok := headers.Lookup("cookie")
	if !ok {
		return cookies
	}
	for _, raw := range header.Strings() {
		for _, pair := range strings.Split(raw, ";") {
			name, value, found := strings.Cut(strings.TrimSpace(pair), "=")
			if found {
				cookies[name] = value
			}
		}
	}
	return cookies
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
