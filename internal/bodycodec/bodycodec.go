// Package bodycodec converts raw request/response bodies to and from
// structured values, driven by the content-type header. JSON and
// form-urlencoded bodies have built-in codecs; anything else is handed to an
// optional caller-supplied fallback or passed through untouched.
package bodycodec

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// TypeJSON is the media type served by the built-in JSON codec.
	TypeJSON = "application/json"
	// TypeForm is the media type served by the built-in form codec.
	TypeForm = "application/x-www-form-urlencoded"
)

// Fallback decodes bodies whose content type has no built-in codec. Returning
// false declines the body, leaving the raw string to pass through unchanged.
type Fallback func(contentType, raw string) (any, bool, error)

// MalformedBodyError reports a body that a built-in codec failed to parse.
// Callers treat it as a client error, never a server fault.
type MalformedBodyError struct {
	ContentType string
	Cause       error
}

func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("malformed %s body: %v", e.ContentType, e.Cause)
}

func (e *MalformedBodyError) Unwrap() error {
	return e.Cause
}

// MediaType canonicalizes a content-type header value for codec lookup.
// Matching is exact on the result: parameters such as "; charset=utf-8" are
// kept, so a parameterized JSON type falls through to the fallback.
func MediaType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(contentType))
}

// Decode parses raw according to contentType. An empty content type or one
// with no codec returns raw unchanged. Built-in parse failures surface as
// *MalformedBodyError; a fallback's failure is returned as-is.
func Decode(contentType, raw string, fallback Fallback) (any, error) {
	switch mt := MediaType(contentType); mt {
	case "":
		return raw, nil
	case TypeJSON:
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, &MalformedBodyError{ContentType: mt, Cause: err}
		}
		return decoded, nil
	case TypeForm:
		fields, err := url.ParseQuery(raw)
		if err != nil {
			return nil, &MalformedBodyError{ContentType: mt, Cause: err}
		}
		return formToStructured(fields), nil
	default:
		if fallback != nil {
			if decoded, ok, err := fallback(contentType, raw); err != nil {
				return nil, err
			} else if ok {
				return decoded, nil
			}
		}
		return raw, nil
	}
}

// Encode is Decode's inverse, used to manufacture raw bodies from structured
// fixtures. Unknown content types require value to already be a string.
func Encode(contentType string, value any) (string, error) {
	switch mt := MediaType(contentType); mt {
	case TypeJSON:
		raw, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("encode %s body: %w", mt, err)
		}
		return string(raw), nil
	case TypeForm:
		fields, err := structuredToForm(value)
		if err != nil {
			return "", err
		}
		return fields.Encode(), nil
	default:
		str, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("body for content type %q must be a string, got %T", contentType, value)
		}
		return str, nil
	}
}

// formToStructured keeps the shape JSON decoding would produce for the
// equivalent document: lone fields become strings, repeated fields []any.
func formToStructured(fields url.Values) map[string]any {
	structured := make(map[string]any, len(fields))
	for name, values := range fields {
		if len(values) == 1 {
			structured[name] = values[0]
			continue
		}
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		structured[name] = list
	}
	return structured
}

func structuredToForm(value any) (url.Values, error) {
	fields := url.Values{}
	switch v := value.(type) {
	case url.Values:
		return v, nil
	case map[string][]string:
		return url.Values(v), nil
	case map[string]string:
		for name, val := range v {
			fields.Set(name, val)
		}
	case map[string]any:
		for name, val := range v {
			switch fv := val.(type) {
			case string:
				fields.Set(name, fv)
			case []string:
				fields[name] = fv
			case []any:
				for _, item := range fv {
					fields.Add(name, fmt.Sprint(item))
				}
			default:
				fields.Set(name, fmt.Sprint(fv))
			}
		}
	default:
		return nil, fmt.Errorf("cannot form-encode %T", value)
	}
	return fields, nil
}
