package contracttest

// EngineOption mutates a fake engine under construction.
type EngineOption func(*Engine)

// WithRootExtension sets an extension on the document root scope.
func WithRootExtension(name string, value any) EngineOption {
	return func(e *Engine) {
		e.root.extensions[name] = value
	}
}

// RouteOption mutates a scripted route under construction.
type RouteOption func(*Route)

// WithOperationID sets the route's operationId.
func WithOperationID(id string) RouteOption {
	return func(r *Route) {
		r.operationID = id
	}
}

// WithExtension sets an extension on the operation itself.
func WithExtension(name string, value any) RouteOption {
	return func(r *Route) {
		r.extensions[name] = value
	}
}

// WithPathExtension sets an extension on the route's path scope, shared with
// every other route on the same template.
func WithPathExtension(name string, value any) RouteOption {
	return func(r *Route) {
		r.parent.extensions[name] = value
	}
}

// WithPathParam declares a typed path parameter. Path parameters are always
// required.
func WithPathParam(name, typ string) RouteOption {
	return func(r *Route) {
		r.pathParams = append(r.pathParams, Param{Name: name, Type: typ, Required: true})
	}
}

// WithQueryParam declares a typed query parameter.
func WithQueryParam(name, typ string, required bool) RouteOption {
	return func(r *Route) {
		r.queryParams = append(r.queryParams, Param{Name: name, Type: typ, Required: required})
	}
}

// WithHeaderParam declares a typed header parameter.
func WithHeaderParam(name, typ string, required bool) RouteOption {
	return func(r *Route) {
		r.headerParams = append(r.headerParams, Param{Name: name, Type: typ, Required: required})
	}
}

// WithCookieParam declares a typed cookie parameter.
func WithCookieParam(name, typ string, required bool) RouteOption {
	return func(r *Route) {
		r.cookieParams = append(r.cookieParams, Param{Name: name, Type: typ, Required: required})
	}
}

// WithResponse declares a permitted response status.
func WithResponse(status int, options ...ResponseOption) RouteOption {
	return func(r *Route) {
		rule := &responseRule{}
		for _, opt := range options {
			opt(rule)
		}
		r.responses[status] = rule
	}
}

// WithRespondError scripts an unconditional response-validation failure.
func WithRespondError(err error) RouteOption {
	return func(r *Route) {
		r.respondErr = err
	}
}

// ResponseOption mutates one declared response rule.
type ResponseOption func(*responseRule)

// WithRequiredBodyFields requires the response body to be an object carrying
// the named fields.
func WithRequiredBodyFields(names ...string) ResponseOption {
	return func(rule *responseRule) {
		rule.requiredBodyFields = append(rule.requiredBodyFields, names...)
	}
}
