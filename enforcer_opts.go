package enforcerlambda

import (
	"log/slog"
)

// WithOptions replaces the whole option record. Zeroed fields are still
// completed by defaults afterwards.
func WithOptions(options Options) Option {
	return func(a *API) {
		a.opts = options
	}
}

// WithLogger sets the logger used at the invocation boundary.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithAllowOtherQueryParameters permits query parameters the document does
// not declare.
func WithAllowOtherQueryParameters(allow bool) Option {
	return func(a *API) {
		a.opts.AllowOtherQueryParameters = allow
	}
}

// WithAllowedQueryParameters permits the named undeclared query parameters.
func WithAllowedQueryParameters(names ...string) Option {
	return func(a *API) {
		a.opts.AllowedQueryParameters = names
	}
}

// WithBodyParser registers a decoder for content types outside the built-in
// JSON and form-urlencoded codecs.
func WithBodyParser(parser BodyParser) Option {
	return func(a *API) {
		a.opts.BodyParser = parser
	}
}

func WithHandleBadRequest(handle bool) Option {
	return func(a *API) {
		a.opts.HandleBadRequest = &handle
	}
}

func WithHandleBadResponse(handle bool) Option {
	return func(a *API) {
		a.opts.HandleBadResponse = &handle
	}
}

func WithHandleNotFound(handle bool) Option {
	return func(a *API) {
		a.opts.HandleNotFound = &handle
	}
}

func WithHandleMethodNotAllowed(handle bool) Option {
	return func(a *API) {
		a.opts.HandleMethodNotAllowed = &handle
	}
}

// WithLogErrors controls boundary logging of converted errors.
func WithLogErrors(log bool) Option {
	return func(a *API) {
		a.opts.LogErrors = &log
	}
}

// WithControllerKey overrides the extension name the Route dispatcher reads
// controller names from.
func WithControllerKey(name string) Option {
	return func(a *API) {
		a.opts.XController = name
	}
}

// WithOperationKey overrides the extension name the Route dispatcher reads
// operation names from.
func WithOperationKey(name string) Option {
	return func(a *API) {
		a.opts.XOperation = name
	}
}
