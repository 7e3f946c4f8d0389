package enforcerlambda_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	enforcerlambda "github.com/Gi60s/openapi-enforcer-lambda"
	"github.com/Gi60s/openapi-enforcer-lambda/contract"
	"github.com/Gi60s/openapi-enforcer-lambda/contract/contracttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// petsEngine scripts a small document: a collection route accepting JSON and
// form bodies, and an item route with a typed path parameter.
func petsEngine() *contracttest.Engine {
	engine := contracttest.New()
	engine.AddRoute(http.MethodPost, "/pets",
		contracttest.WithOperationID("createPet"),
		contracttest.WithResponse(201, contracttest.WithRequiredBodyFields("id")))
	engine.AddRoute(http.MethodGet, "/pets/{petId}",
		contracttest.WithOperationID("getPet"),
		contracttest.WithPathParam("petId", "integer"),
		contracttest.WithQueryParam("verbose", "boolean", false),
		contracttest.WithResponse(200))
	return engine
}

func newAPI(t *testing.T, engine contract.Engine, options ...enforcerlambda.Option) *enforcerlambda.API {
	t.Helper()
	api, err := enforcerlambda.New(engine, append([]enforcerlambda.Option{enforcerlambda.WithLogErrors(false)}, options...)...)
	require.NoError(t, err)
	return api
}

func TestHandlerDecodesJSONAndFormBodiesIdentically(t *testing.T) {
	testCases := []struct {
		Name        string
		ContentType string
		Body        any
	}{
		{
			Name:        "json",
			ContentType: "application/json",
			Body:        map[string]any{"name": "Bob"},
		},
		{
			Name:        "form_urlencoded",
			ContentType: "application/x-www-form-urlencoded",
			Body:        "name=Bob",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			var seen any
			api := newAPI(t, petsEngine())
			handler := api.Handler(func(_ context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
				seen = req.Body
				res.Status(201).Send(map[string]any{"id": float64(1)})
				return nil
			})

			result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
				Method:  http.MethodPost,
				Path:    "/pets",
				Headers: map[string]any{"content-type": tc.ContentType},
				Body:    tc.Body,
			})
			require.NoError(t, err)

			assert.Equal(t, 201, result.StatusCode)
			assert.Equal(t, map[string]any{"name": "Bob"}, seen)
		})
	}
}

func TestHandlerRejectsMistypedPathParameter(t *testing.T) {
	invocations := 0
	api := newAPI(t, petsEngine())
	handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, res *enforcerlambda.Response) error {
		invocations++
		res.Send()
		return nil
	})

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets/abc"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.Equal(t, 0, invocations)
}

func TestHandlerRejectsUndeclaredPath(t *testing.T) {
	invocations := 0
	api := newAPI(t, petsEngine())
	handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, _ *enforcerlambda.Response) error {
		invocations++
		return nil
	})

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/owners"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Equal(t, "Path not found", result.Body)
	assert.Equal(t, 0, invocations)
}

func TestHandlerUndeclaredQueryParameter(t *testing.T) {
	invoke := func(t *testing.T, options ...enforcerlambda.Option) *enforcerlambda.TestResult {
		t.Helper()
		api := newAPI(t, petsEngine(), options...)
		handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, res *enforcerlambda.Response) error {
			res.Send()
			return nil
		})
		result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets/1?sort=asc"})
		require.NoError(t, err)
		return result
	}

	t.Run("rejected_by_default", func(t *testing.T) {
		result := invoke(t)
		assert.Equal(t, http.StatusBadRequest, result.StatusCode)
		assert.Equal(t, "query parameter not allowed: sort", result.Body)
	})

	t.Run("allowed_when_opted_in", func(t *testing.T) {
		result := invoke(t, enforcerlambda.WithAllowOtherQueryParameters(true))
		assert.Equal(t, http.StatusOK, result.StatusCode)
	})

	t.Run("allowed_by_name", func(t *testing.T) {
		result := invoke(t, enforcerlambda.WithAllowedQueryParameters("sort"))
		assert.Equal(t, http.StatusOK, result.StatusCode)
	})
}

func TestHandlerInvalidResponseIsServerFault(t *testing.T) {
	invocations := 0
	api := newAPI(t, petsEngine())
	handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, res *enforcerlambda.Response) error {
		invocations++
		res.Status(201).Send(map[string]any{"name": "no id field"})
		return nil
	})

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
		Method:  http.MethodPost,
		Path:    "/pets",
		Headers: map[string]any{"content-type": "application/json"},
		Body:    map[string]any{"name": "Bob"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, "Internal server error", result.Body)
	assert.Equal(t, 1, invocations)
}

func TestHandlerExposesDeserializedParameters(t *testing.T) {
	engine := contracttest.New()
	engine.AddRoute(http.MethodGet, "/pets/{petId}",
		contracttest.WithOperationID("getPet"),
		contracttest.WithPathParam("petId", "integer"),
		contracttest.WithQueryParam("limit", "integer", false),
		contracttest.WithHeaderParam("x-trace", "string", false),
		contracttest.WithCookieParam("session", "string", false),
		contracttest.WithResponse(200))

	api := newAPI(t, engine)
	var seen *enforcerlambda.Request
	handler := api.Handler(func(_ context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
		seen = req
		res.Send()
		return nil
	})

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
		Path: "/pets/7?limit=5",
		Headers: map[string]any{
			"X-Trace":  "abc",
			"X-Client": "cli",
			"cookie":   "session=s1",
		},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)

	require.NotNil(t, seen)
	assert.Equal(t, 7, seen.PathParams["petId"])
	assert.Equal(t, 5, seen.Query["limit"])
	assert.Equal(t, "abc", seen.Headers["x-trace"])
	assert.NotContains(t, seen.Headers, "X-Trace")
	assert.Equal(t, "cli", seen.Headers["x-client"])
	assert.Equal(t, "s1", seen.Cookies["session"])
	assert.Equal(t, "/pets/7", seen.Path)
	assert.Equal(t, "/pets/{petId}", seen.PathKey)
	assert.Equal(t, http.MethodGet, seen.Method)
	require.NotNil(t, seen.Operation)
	assert.Equal(t, "getPet", seen.Operation.ID())
}

func TestHandlerRawBodyPassesThroughWithoutContentType(t *testing.T) {
	engine := contracttest.New()
	engine.AddRoute(http.MethodPost, "/echo",
		contracttest.WithOperationID("echo"),
		contracttest.WithResponse(200))

	api := newAPI(t, engine)
	var seen any
	handler := api.Handler(func(_ context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
		seen = req.Body
		res.Send()
		return nil
	})

	_, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
		Method: http.MethodPost,
		Path:   "/echo",
		Body:   "raw payload",
	})
	require.NoError(t, err)
	assert.Equal(t, "raw payload", seen)
}

func TestHandlerDecodesBase64FlaggedBody(t *testing.T) {
	api := newAPI(t, petsEngine())
	var seen any
	handler := api.Handler(func(_ context.Context, req *enforcerlambda.Request, res *enforcerlambda.Response) error {
		seen = req.Body
		res.Status(201).Send(map[string]any{"id": float64(1)})
		return nil
	})

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
		Method:  http.MethodPost,
		Path:    "/pets",
		Headers: map[string]any{"content-type": "application/json"},
		Body:    []byte(`{"name":"Bob"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, 201, result.StatusCode)
	assert.Equal(t, map[string]any{"name": "Bob"}, seen)
}

func TestHandlerMalformedJSONBodyIsClientError(t *testing.T) {
	api := newAPI(t, petsEngine())
	invocations := 0
	handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, _ *enforcerlambda.Response) error {
		invocations++
		return nil
	})

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
		Method:  http.MethodPost,
		Path:    "/pets",
		Headers: map[string]any{"content-type": "application/json"},
		Body:    `{"name":`,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.Equal(t, 0, invocations)
}

func TestHandlerErrorIsFlattenedToGeneric500(t *testing.T) {
	api := newAPI(t, petsEngine())
	handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, _ *enforcerlambda.Response) error {
		return errors.New("database exploded: credentials=hunter2")
	})

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets/1"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, "Internal server error", result.Body)
}

func TestHandlerUnhandledClassesSurfaceRaw(t *testing.T) {
	t.Run("bad_request", func(t *testing.T) {
		api := newAPI(t, petsEngine(), enforcerlambda.WithHandleBadRequest(false))
		handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, _ *enforcerlambda.Response) error {
			return nil
		})

		_, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets/abc"})
		var validationErr *enforcerlambda.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, http.StatusBadRequest, validationErr.Code())
	})

	t.Run("not_found", func(t *testing.T) {
		api := newAPI(t, petsEngine(), enforcerlambda.WithHandleNotFound(false))
		handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, _ *enforcerlambda.Response) error {
			return nil
		})

		_, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/owners"})
		var validationErr *enforcerlambda.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, http.StatusNotFound, validationErr.Code())
	})

	t.Run("method_not_allowed", func(t *testing.T) {
		api := newAPI(t, petsEngine(), enforcerlambda.WithHandleMethodNotAllowed(false))
		handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, _ *enforcerlambda.Response) error {
			return nil
		})

		_, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
			Method: http.MethodDelete,
			Path:   "/pets/1",
		})
		var validationErr *enforcerlambda.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, http.StatusMethodNotAllowed, validationErr.Code())
	})

	t.Run("bad_response", func(t *testing.T) {
		api := newAPI(t, petsEngine(), enforcerlambda.WithHandleBadResponse(false))
		handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, res *enforcerlambda.Response) error {
			res.Status(418).Send()
			return nil
		})

		_, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets/1"})
		var serverErr *enforcerlambda.ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.True(t, serverErr.InvalidResponse)
	})
}

func TestLazyEngineLoadRunsOnceAndKeepsFailures(t *testing.T) {
	loads := 0
	api, err := enforcerlambda.NewLazy(func(context.Context) (contract.Engine, error) {
		loads++
		return nil, errors.New("document missing")
	}, enforcerlambda.WithLogErrors(false))
	require.NoError(t, err)

	handler := api.Handler(func(_ context.Context, _ *enforcerlambda.Request, _ *enforcerlambda.Response) error {
		return nil
	})

	for range 2 {
		result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
		assert.Equal(t, "Internal server error", result.Body)
	}
	assert.Equal(t, 1, loads)
}
