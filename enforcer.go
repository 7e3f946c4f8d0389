package enforcerlambda

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Gi60s/openapi-enforcer-lambda/contract"
	"github.com/Gi60s/openapi-enforcer-lambda/kinengine"
	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler is the invocation signature produced by Handler and Route,
// ready to hand to lambda.Start.
type LambdaHandler func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Option mutates an API under construction.
type Option func(*API)

// API drives invocation events through a contract engine and the caller's
// business logic. One API serves any number of concurrent invocations; each
// gets its own Request and Response.
type API struct {
	opts   Options
	logger *slog.Logger

	loadMu  sync.Mutex
	load    func(ctx context.Context) (contract.Engine, error)
	engine  contract.Engine
	loaded  bool
	loadErr error
}

// New builds an API over an already-loaded contract engine.
func New(engine contract.Engine, options ...Option) (*API, error) {
	if engine == nil {
		return nil, errors.New("a contract engine is required")
	}
	return NewLazy(func(context.Context) (contract.Engine, error) {
		return engine, nil
	}, options...)
}

// NewLazy builds an API whose contract engine is loaded on first use. The
// load runs once; its outcome, success or failure, is kept for every later
// invocation.
func NewLazy(load func(ctx context.Context) (contract.Engine, error), options ...Option) (*API, error) {
	if load == nil {
		return nil, errors.New("an engine loader is required")
	}
	_inst := &API{load: load}
	for _, opt := range options {
		opt(_inst)
	}
	if err := _inst.opts.setDefaults(); err != nil {
		return nil, err
	}
	if _inst.logger == nil {
		if *_inst.opts.LogErrors {
			_inst.logger = slog.Default()
		} else {
			_inst.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
	}
	return _inst, nil
}

// Load builds an API over the bundled kin-openapi engine, loading the
// document at path on first use.
func Load(path string, options ...Option) (*API, error) {
	return NewLazy(func(ctx context.Context) (contract.Engine, error) {
		return kinengine.Load(ctx, path)
	}, options...)
}

// Handler wraps a single business-logic function. Every matched operation of
// the document is dispatched to it.
func (a *API) Handler(handler HandlerFunc) LambdaHandler {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		req, res, err := a.initialize(ctx, event)
		if err != nil {
			return a.convert(err)
		}
		if err := handler(ctx, req, res); err != nil {
			return a.convert(err)
		}
		result, err := a.finalize(req, res)
		if err != nil {
			return a.convert(err)
		}
		return result, nil
	}
}

// Route wraps a controller table: each matched operation is resolved to a
// controller and operation name through the document's routing metadata and
// dispatched to the table entry. Resolutions are cached per returned handler.
func (a *API) Route(controllers Controllers) LambdaHandler {
	rt := newRouter(controllers, a.opts.XController, a.opts.XOperation)
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		req, res, err := a.initialize(ctx, event)
		if err != nil {
			return a.convert(err)
		}
		handler, err := rt.resolve(req)
		if err != nil {
			return a.convert(err)
		}
		if err := handler(ctx, req, res); err != nil {
			return a.convert(err)
		}
		result, err := a.finalize(req, res)
		if err != nil {
			return a.convert(err)
		}
		return result, nil
	}
}

func (a *API) resolveEngine(ctx context.Context) (contract.Engine, error) {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()
	if !a.loaded {
		a.engine, a.loadErr = a.load(ctx)
		if a.loadErr == nil && a.engine == nil {
			a.loadErr = errors.New("engine loader returned nil")
		}
		a.loaded = true
	}
	if a.loadErr != nil {
		return nil, newServerError(a.loadErr, "failed to load the contract engine")
	}
	return a.engine, nil
}

// convert is the single boundary where errors become invocation results.
// Classes whose Handle* switch is off are returned raw instead, for the host
// environment to report as a failed invocation.
func (a *API) convert(err error) (events.APIGatewayProxyResponse, error) {
	logErrors := *a.opts.LogErrors

	var validationErr *ValidationError
	var configErr *RouteConfigurationError
	var serverErr *ServerError
	switch {
	case errors.As(err, &validationErr):
		code := validationErr.Code()
		handled := *a.opts.HandleBadRequest
		switch code {
		case http.StatusNotFound:
			handled = *a.opts.HandleNotFound
		case http.StatusMethodNotAllowed:
			handled = *a.opts.HandleMethodNotAllowed
		}
		if logErrors {
			a.logger.Warn("request rejected", slog.Any("error", err))
		}
		if !handled {
			return events.APIGatewayProxyResponse{}, err
		}
		return textResult(code, validationErr.Error()), nil

	case errors.As(err, &configErr):
		if logErrors {
			a.logger.Error("route configuration error", slog.Any("error", err))
		}
		return textResult(http.StatusInternalServerError, configErr.Error()), nil

	case errors.As(err, &serverErr):
		if logErrors {
			a.logger.Error("request failed", slog.Any("error", err))
		}
		if serverErr.InvalidResponse && !*a.opts.HandleBadResponse {
			return events.APIGatewayProxyResponse{}, err
		}
		return textResult(http.StatusInternalServerError, "Internal server error"), nil

	default:
		if logErrors {
			a.logger.Error("request failed", slog.Any("error", err))
		}
		return textResult(http.StatusInternalServerError, "Internal server error"), nil
	}
}

func textResult(code int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"content-type": "text/plain"},
		Body:       body,
	}
}
