package bodycodec_test

import (
	"errors"
	"testing"

	"github.com/Gi60s/openapi-enforcer-lambda/internal/bodycodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		Name          string
		ContentType   string
		Raw           string
		Expected      any
		WantMalformed bool
	}{
		{
			Name:        "json_object",
			ContentType: "application/json",
			Raw:         `{"name":"Bob"}`,
			Expected:    map[string]any{"name": "Bob"},
		},
		{
			Name:        "json_case_insensitive_content_type",
			ContentType: "Application/JSON",
			Raw:         `[1,2]`,
			Expected:    []any{float64(1), float64(2)},
		},
		{
			Name:          "json_syntax_error",
			ContentType:   "application/json",
			Raw:           `{"name":`,
			WantMalformed: true,
		},
		{
			Name:        "form_single_field",
			ContentType: "application/x-www-form-urlencoded",
			Raw:         "name=Bob",
			Expected:    map[string]any{"name": "Bob"},
		},
		{
			Name:        "form_repeated_field",
			ContentType: "application/x-www-form-urlencoded",
			Raw:         "tag=a&tag=b&name=Bob",
			Expected:    map[string]any{"tag": []any{"a", "b"}, "name": "Bob"},
		},
		{
			Name:          "form_bad_escape",
			ContentType:   "application/x-www-form-urlencoded",
			Raw:           "name=%zz",
			WantMalformed: true,
		},
		{
			Name:        "unknown_type_passes_through",
			ContentType: "text/plain",
			Raw:         "hello",
			Expected:    "hello",
		},
		{
			Name:        "parameterized_json_passes_through",
			ContentType: "application/json; charset=utf-8",
			Raw:         `{"name":"Bob"}`,
			Expected:    `{"name":"Bob"}`,
		},
		{
			Name:     "absent_type_passes_through",
			Raw:      "raw",
			Expected: "raw",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			decoded, err := bodycodec.Decode(tc.ContentType, tc.Raw, nil)
			if tc.WantMalformed {
				var malformed *bodycodec.MalformedBodyError
				require.ErrorAs(t, err, &malformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, decoded)
		})
	}
}

func TestDecodeFallback(t *testing.T) {
	t.Run("handles_registered_type", func(t *testing.T) {
		fallback := func(contentType, raw string) (any, bool, error) {
			if contentType != "text/csv" {
				return nil, false, nil
			}
			return []string{"a", "b"}, true, nil
		}

		decoded, err := bodycodec.Decode("text/csv", "a,b", fallback)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, decoded)
	})

	t.Run("declined_type_passes_through", func(t *testing.T) {
		fallback := func(contentType, raw string) (any, bool, error) {
			return nil, false, nil
		}

		decoded, err := bodycodec.Decode("text/csv", "a,b", fallback)
		require.NoError(t, err)
		assert.Equal(t, "a,b", decoded)
	})

	t.Run("fallback_error_propagates_unwrapped", func(t *testing.T) {
		wantErr := errors.New("unbalanced quotes")
		fallback := func(contentType, raw string) (any, bool, error) {
			return nil, false, wantErr
		}

		_, err := bodycodec.Decode("text/csv", `"a`, fallback)
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("not_consulted_for_builtin_types", func(t *testing.T) {
		fallback := func(contentType, raw string) (any, bool, error) {
			t.Fatal("fallback invoked for a built-in content type")
			return nil, false, nil
		}

		decoded, err := bodycodec.Decode("application/json", `1`, fallback)
		require.NoError(t, err)
		assert.Equal(t, float64(1), decoded)
	})
}

func TestEncode(t *testing.T) {
	testCases := []struct {
		Name        string
		ContentType string
		Value       any
		Expected    string
		WantErr     bool
	}{
		{
			Name:        "json_object",
			ContentType: "application/json",
			Value:       map[string]any{"name": "Bob"},
			Expected:    `{"name":"Bob"}`,
		},
		{
			Name:        "form_map_of_any",
			ContentType: "application/x-www-form-urlencoded",
			Value:       map[string]any{"name": "Bob", "age": 3},
			Expected:    "age=3&name=Bob",
		},
		{
			Name:        "form_repeated_values",
			ContentType: "application/x-www-form-urlencoded",
			Value:       map[string][]string{"tag": {"a", "b"}},
			Expected:    "tag=a&tag=b",
		},
		{
			Name:        "form_rejects_scalar",
			ContentType: "application/x-www-form-urlencoded",
			Value:       "not a map",
			WantErr:     true,
		},
		{
			Name:        "unknown_type_requires_string",
			ContentType: "text/plain",
			Value:       "hello",
			Expected:    "hello",
		},
		{
			Name:        "unknown_type_rejects_structured",
			ContentType: "text/plain",
			Value:       map[string]any{"name": "Bob"},
			WantErr:     true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			raw, err := bodycodec.Encode(tc.ContentType, tc.Value)
			if tc.WantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, raw)
		})
	}
}
