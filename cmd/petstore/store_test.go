package main

import (
	"net/http"
	"testing"

	enforcerlambda "github.com/Gi60s/openapi-enforcer-lambda"
	"github.com/Gi60s/openapi-enforcer-lambda/kinengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPetstoreHandler(t *testing.T) enforcerlambda.LambdaHandler {
	t.Helper()
	engine, err := kinengine.LoadBytes(t.Context(), petstoreDocument)
	require.NoError(t, err)
	api, err := enforcerlambda.New(engine, enforcerlambda.WithLogErrors(false))
	require.NoError(t, err)
	return api.Route(NewStore().Controllers())
}

func TestPetstoreList(t *testing.T) {
	testCases := []struct {
		Name      string
		Path      string
		WantNames []string
	}{
		{
			Name:      "all_seeded_pets",
			Path:      "/pets",
			WantNames: []string{"Rex", "Mittens"},
		},
		{
			Name:      "limited",
			Path:      "/pets?limit=1",
			WantNames: []string{"Rex"},
		},
		{
			Name:      "filtered_by_tag",
			Path:      "/pets?tag=cat",
			WantNames: []string{"Mittens"},
		},
		{
			Name:      "unmatched_tag",
			Path:      "/pets?tag=fish",
			WantNames: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			handler := newPetstoreHandler(t)

			result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: tc.Path})
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, result.StatusCode)

			pets, ok := result.Body.([]any)
			require.True(t, ok, "expected a JSON array, got %T", result.Body)

			names := make([]string, 0, len(pets))
			for _, entry := range pets {
				pet, ok := entry.(map[string]any)
				require.True(t, ok)
				names = append(names, pet["name"].(string))
			}
			assert.Equal(t, tc.WantNames, names)
		})
	}
}

func TestPetstoreCreateAndFetch(t *testing.T) {
	testCases := []struct {
		Name        string
		ContentType string
		Body        any
	}{
		{
			Name:        "json",
			ContentType: "application/json",
			Body:        map[string]any{"name": "Bella", "tag": "bird"},
		},
		{
			Name:        "form_urlencoded",
			ContentType: "application/x-www-form-urlencoded",
			Body:        "name=Bella&tag=bird",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			handler := newPetstoreHandler(t)

			created, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
				Method:  http.MethodPost,
				Path:    "/pets",
				Headers: map[string]any{"content-type": tc.ContentType},
				Body:    tc.Body,
			})
			require.NoError(t, err)
			require.Equal(t, 201, created.StatusCode)
			assert.Equal(t, map[string]any{"id": float64(3), "name": "Bella", "tag": "bird"}, created.Body)

			fetched, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets/3"})
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, fetched.StatusCode)
			assert.Equal(t, created.Body, fetched.Body)
		})
	}
}

func TestPetstoreCreateRequiresName(t *testing.T) {
	handler := newPetstoreHandler(t)

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
		Method:  http.MethodPost,
		Path:    "/pets",
		Headers: map[string]any{"content-type": "application/json"},
		Body:    map[string]any{"tag": "anonymous"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
}

func TestPetstoreGetUnknownPet(t *testing.T) {
	handler := newPetstoreHandler(t)

	result, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets/99"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Equal(t, "pet not found", result.Body)
}

func TestPetstoreDeleteThenFetch(t *testing.T) {
	handler := newPetstoreHandler(t)

	deleted, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{
		Method: http.MethodDelete,
		Path:   "/pets/1",
	})
	require.NoError(t, err)
	assert.Equal(t, 204, deleted.StatusCode)

	fetched, err := enforcerlambda.TestInvoke(t.Context(), handler, enforcerlambda.TestRequest{Path: "/pets/1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, fetched.StatusCode)
}
