// Package enforcerlambda adapts API Gateway proxy invocations to handlers
// programmed against an OpenAPI document. Incoming events are parsed and
// validated by a contract engine before business logic runs, and every
// collected response is validated against the document before it is returned
// to the caller.
//
// A handler receives the validated request and a chainable response
// accumulator:
//
//	api, err := enforcerlambda.Load("openapi.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	lambda.Start(api.Handler(func(ctx context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
//		res.Status(200).Send(map[string]any{"id": req.PathParams["id"]})
//		return nil
//	}))
//
// Route dispatches through the document instead, resolving each operation to
// a controller table entry via the x-controller and x-operation extensions.
package enforcerlambda
