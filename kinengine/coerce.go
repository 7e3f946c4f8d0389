package kinengine

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Gi60s/openapi-enforcer-lambda/params"
	"github.com/getkin/kin-openapi/openapi3"
)

// The filter validates parameters but reports them as strings; these helpers
// rebuild the deserialized values the handler sees, using the declared schema
// of each parameter.

func coercePathParams(raw map[string]string, declared []*openapi3.Parameter) map[string]any {
	out := make(map[string]any, len(raw))
	for name, value := range raw {
		out[name] = value
	}
	for _, p := range declared {
		if p.In != openapi3.ParameterInPath {
			continue
		}
		if value, ok := raw[p.Name]; ok {
			out[p.Name] = coerceValue(value, p.Schema)
		}
	}
	return out
}

func coerceQueryParams(query url.Values, declared []*openapi3.Parameter) map[string]any {
	out := map[string]any{}
	for _, p := range declared {
		if p.In != openapi3.ParameterInQuery {
			continue
		}
		values, ok := query[p.Name]
		if !ok || len(values) == 0 {
			continue
		}
		if schemaIncludes(p.Schema, openapi3.TypeArray) {
			items := make([]any, 0, len(values))
			for _, value := range values {
				items = append(items, coerceValue(value, itemsSchema(p.Schema)))
			}
			out[p.Name] = items
		} else {
			out[p.Name] = coerceValue(values[0], p.Schema)
		}
	}
	return out
}

func coerceHeaderParams(headers params.Map, declared []*openapi3.Parameter) map[string]any {
	out := map[string]any{}
	for _, p := range declared {
		if p.In != openapi3.ParameterInHeader {
			continue
		}
		if value, ok := headers.Lookup(p.Name); ok {
			out[strings.ToLower(p.Name)] = coerceValue(value.First(), p.Schema)
		}
	}
	return out
}

func coerceCookieParams(headers params.Map, declared []*openapi3.Parameter) map[string]any {
	out := map[string]any{}
	header, ok := headers.Lookup("cookie")
	if !ok {
		return out
	}
	cookies, err := http.ParseCookie(header.First())
	if err != nil {
		return out
	}
	jar := make(map[string]string, len(cookies))
	for _, cookie := range cookies {
		if _, taken := jar[cookie.Name]; !taken {
			jar[cookie.Name] = cookie.Value
		}
	}
	for _, p := range declared {
		if p.In != openapi3.ParameterInCookie {
			continue
		}
		if value, ok := jar[p.Name]; ok {
			out[p.Name] = coerceValue(value, p.Schema)
		}
	}
	return out
}

func coerceValue(raw string, ref *openapi3.SchemaRef) any {
	schema := schemaOf(ref)
	if schema == nil || schema.Type == nil {
		return raw
	}
	switch {
	case schema.Type.Includes(openapi3.TypeInteger):
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	case schema.Type.Includes(openapi3.TypeNumber):
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case schema.Type.Includes(openapi3.TypeBoolean):
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

func schemaOf(ref *openapi3.SchemaRef) *openapi3.Schema {
	if ref == nil {
		return nil
	}
	return ref.Value
}

func schemaIncludes(ref *openapi3.SchemaRef, typ string) bool {
	schema := schemaOf(ref)
	return schema != nil && schema.Type != nil && schema.Type.Includes(typ)
}

func itemsSchema(ref *openapi3.SchemaRef) *openapi3.SchemaRef {
	schema := schemaOf(ref)
	if schema == nil {
		return nil
	}
	return schema.Items
}
