package enforcerlambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Gi60s/openapi-enforcer-lambda/contract"
	"github.com/Gi60s/openapi-enforcer-lambda/internal/bodycodec"
	"github.com/Gi60s/openapi-enforcer-lambda/params"
	"github.com/aws/aws-lambda-go/events"
)

// initialize translates an invocation event into a contract-validated request
// and a fresh response accumulator. Any returned error already carries its
// classification for the boundary to render.
func (a *API) initialize(ctx context.Context, event events.APIGatewayProxyRequest) (*Request, *Response, error) {
	engine, err := a.resolveEngine(ctx)
	if err != nil {
		return nil, nil, err
	}

	query := params.Merge(event.QueryStringParameters, event.MultiValueQueryStringParameters)
	pathWithQuery := event.Path
	if len(query) > 0 {
		pathWithQuery += "?" + query.Encode()
	}

	headers := params.Merge(event.Headers, event.MultiValueHeaders)

	raw := event.Body
	if event.IsBase64Encoded && raw != "" {
		decoded, decodeErr := base64.StdEncoding.DecodeString(raw)
		if decodeErr != nil {
			return nil, nil, &ValidationError{StatusCode: http.StatusBadRequest, Message: "request body is not valid base64"}
		}
		raw = string(decoded)
	}

	var body any
	hasBody := raw != ""
	if hasBody {
		contentType, _ := headers.Lookup("content-type")
		body, err = bodycodec.Decode(contentType.First(), raw, bodycodec.Fallback(a.opts.BodyParser))
		if err != nil {
			return nil, nil, &ValidationError{StatusCode: http.StatusBadRequest, Message: err.Error()}
		}
	}

	descriptor := contract.RequestDescriptor{
		Method:  event.HTTPMethod,
		Path:    pathWithQuery,
		Headers: headers,
	}
	if hasBody {
		descriptor.Body = body
	}

	parsed, err := engine.Request(ctx, descriptor, contract.RequestOptions{
		AllowOtherQueryParameters: a.opts.AllowOtherQueryParameters,
		AllowedQueryParameters:    a.opts.AllowedQueryParameters,
	})
	if err != nil {
		var reqErr *contract.RequestError
		if errors.As(err, &reqErr) {
			return nil, nil, &ValidationError{StatusCode: reqErr.StatusCode, Message: reqErr.Message}
		}
		return nil, nil, newServerError(err, "contract engine failed")
	}

	req := &Request{
		Body:       parsed.Body,
		Cookies:    parsed.CookieParams,
		Headers:    mergedHeaderView(headers, parsed.HeaderParams),
		Method:     strings.ToUpper(event.HTTPMethod),
		Operation:  parsed.Operation,
		PathParams: parsed.PathParams,
		Path:       event.Path,
		PathKey:    parsed.PathKey,
		Query:      parsed.QueryParams,
		respond:    parsed.Respond,
	}
	return req, newResponse(), nil
}

// finalize validates the accumulated response against the contract and
// serializes it into the invocation result. A response the contract does not
// permit is a fault in the API implementation, never passed through.
func (a *API) finalize(req *Request, res *Response) (events.APIGatewayProxyResponse, error) {
	if _, err := req.respond(res.statusCode, res.body, responseHeaderView(res)); err != nil {
		return events.APIGatewayProxyResponse{}, newInvalidResponseError(err)
	}

	body, isBase64, err := serializeBody(res)
	if err != nil {
		return events.APIGatewayProxyResponse{}, newServerError(err, "failed to serialize response body")
	}

	result := events.APIGatewayProxyResponse{
		StatusCode:      res.statusCode,
		Headers:         make(map[string]string, len(res.headers)),
		Body:            body,
		IsBase64Encoded: isBase64,
	}
	for k, v := range res.headers {
		result.Headers[k] = v
	}
	if len(res.multiValueHeaders) > 0 {
		result.MultiValueHeaders = make(map[string][]string, len(res.multiValueHeaders))
		for k, vs := range res.multiValueHeaders {
			result.MultiValueHeaders[k] = append([]string(nil), vs...)
		}
	}
	return result, nil
}

// mergedHeaderView exposes request headers to handlers: the raw merged view,
// keyed lowercase, overlaid with the engine's deserialized header parameters.
func mergedHeaderView(raw params.Map, parsed map[string]any) map[string]any {
	view := make(map[string]any, len(raw)+len(parsed))
	for k, v := range raw {
		if v.IsMulti() {
			view[strings.ToLower(k)] = v.Strings()
		} else {
			view[strings.ToLower(k)] = v.First()
		}
	}
	for k, v := range parsed {
		view[k] = v
	}
	return view
}

// responseHeaderView flattens the accumulator's two header maps into the
// shape the engine validates, multi-valued entries as string lists.
func responseHeaderView(res *Response) map[string]any {
	view := make(map[string]any, len(res.headers)+len(res.multiValueHeaders))
	for k, v := range res.headers {
		view[k] = v
	}
	for k, vs := range res.multiValueHeaders {
		view[k] = append([]string(nil), vs...)
	}
	return view
}

// serializeBody renders the accumulated body as the result's string form:
// strings pass through, byte slices are base64-flagged, anything else is
// JSON, and a nil body is empty.
func serializeBody(res *Response) (body string, isBase64 bool, err error) {
	if res.body == nil {
		return "", false, nil
	}
	switch b := res.body.(type) {
	case string:
		return b, false, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(b), true, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return "", false, err
		}
		return string(raw), false, nil
	}
}
