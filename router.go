package enforcerlambda

import (
	"context"
	"sync"

	"github.com/Gi60s/openapi-enforcer-lambda/contract"
)

// HandlerFunc is the business-logic signature driven by the adapter: read the
// validated request, populate the response accumulator, return an error only
// for faults the caller should render as a 500.
type HandlerFunc func(ctx context.Context, req *Request, res *Response) error

// Controller groups the handlers one controller name serves, keyed by
// operation name.
type Controller map[string]HandlerFunc

// Controllers is the lookup table the Route dispatcher resolves against,
// keyed by controller name.
type Controllers map[string]Controller

type routeRegistration struct {
	controller string
	operation  string
	processed  bool
}

// router resolves matched operations to controller table entries. Resolutions
// are cached per operation handle for the life of the router; an operation
// whose metadata walk fails stays uncached so a corrected document is picked
// up without a restart.
type router struct {
	controllers Controllers
	xController string
	xOperation  string

	mu            sync.Mutex
	registrations map[contract.Operation]*routeRegistration
}

func newRouter(controllers Controllers, xController, xOperation string) *router {
	return &router{
		controllers:   controllers,
		xController:   xController,
		xOperation:    xOperation,
		registrations: map[contract.Operation]*routeRegistration{},
	}
}

// resolve returns the handler registered for the request's matched operation.
func (rt *router) resolve(req *Request) (HandlerFunc, error) {
	controllerName, operationName := rt.registration(req.Operation)

	if controllerName == "" || operationName == "" {
		return nil, newRouteConfigurationError(
			"no route mapping for %s %s: the operation needs a %q extension (or an operationId) and a %q extension on itself or an enclosing scope",
			req.Method, req.Path, rt.xOperation, rt.xController)
	}

	controller, ok := rt.controllers[controllerName]
	if !ok {
		return nil, newRouteConfigurationError("%s %s resolves to controller %q, which is not in the controller table",
			req.Method, req.Path, controllerName)
	}
	handler, ok := controller[operationName]
	if !ok {
		return nil, newRouteConfigurationError("%s %s resolves to controller %q, which has no operation %q",
			req.Method, req.Path, controllerName, operationName)
	}
	return handler, nil
}

// registration returns the resolved names for op, walking the metadata chain
// when no frozen resolution exists yet. The controller name comes from the
// nearest enclosing scope carrying the controller extension; the entry is
// frozen only once that walk succeeds.
func (rt *router) registration(op contract.Operation) (controllerName, operationName string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	reg, ok := rt.registrations[op]
	if !ok {
		reg = &routeRegistration{}
		rt.registrations[op] = reg
	}
	if reg.processed {
		return reg.controller, reg.operation
	}

	if name, ok := stringExtension(op, rt.xOperation); ok {
		reg.operation = name
	} else {
		reg.operation = op.ID()
	}

	reg.controller = ""
	for scope := op; scope != nil; scope = scope.Parent() {
		if name, ok := stringExtension(scope, rt.xController); ok {
			reg.controller = name
			reg.processed = true
			break
		}
	}
	return reg.controller, reg.operation
}

func stringExtension(op contract.Operation, key string) (string, bool) {
	value, ok := op.Extension(key)
	if !ok {
		return "", false
	}
	name, ok := value.(string)
	return name, ok && name != ""
}
