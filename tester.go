package enforcerlambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Gi60s/openapi-enforcer-lambda/internal/bodycodec"
	"github.com/Gi60s/openapi-enforcer-lambda/params"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TestRequest is an abbreviated request description for driving a handler
// in-process, without a host environment.
type TestRequest struct {
	// Method defaults to GET.
	Method string `default:"GET"`
	// Path may embed a query string.
	Path string
	// Headers values may be strings or string lists.
	Headers map[string]any
	// Body may be a raw string, a byte slice, or a structured value. A
	// structured body is encoded per the declared content type, defaulting to
	// JSON when no content-type header is given.
	Body any
}

// TestResult is the unwrapped outcome of a synthetic invocation.
type TestResult struct {
	StatusCode int
	// Headers merges the result's single and multi-valued header views.
	Headers params.Map
	// Body is the JSON-decoded response body when it decodes, the raw string
	// otherwise, or the decoded bytes for a base64-flagged result.
	Body any
	// Raw is the unmodified invocation result.
	Raw events.APIGatewayProxyResponse
}

// TestInvoke builds a synthetic invocation event from req, drives handler
// once, and unwraps the result. The execution context carries a populated but
// inert request identity.
func TestInvoke(ctx context.Context, handler LambdaHandler, req TestRequest) (*TestResult, error) {
	event, err := syntheticEvent(req)
	if err != nil {
		return nil, err
	}
	lctx := lambdacontext.NewContext(ctx, &lambdacontext.LambdaContext{
		AwsRequestID:       event.RequestContext.RequestID,
		InvokedFunctionArn: "arn:aws:lambda:local:000000000000:function:test-invoke",
	})
	raw, err := handler(lctx, *event)
	if err != nil {
		return nil, err
	}
	return unwrapResult(raw), nil
}

// Tester re-exposes TestInvoke over a fixed handler for repeated calls.
type Tester struct {
	handler LambdaHandler
}

func NewTester(handler LambdaHandler) *Tester {
	return &Tester{handler: handler}
}

// Invoke drives the tester's handler once.
func (t *Tester) Invoke(ctx context.Context, req TestRequest) (*TestResult, error) {
	return TestInvoke(ctx, t.handler, req)
}

func syntheticEvent(req TestRequest) (*events.APIGatewayProxyRequest, error) {
	if err := defaults.Set(&req); err != nil {
		return nil, errors.Wrap(err, "failed to apply request defaults")
	}

	path, rawQuery, _ := strings.Cut(req.Path, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, errors.Wrap(err, "invalid query string")
	}

	headers, err := params.FromAny(req.Headers)
	if err != nil {
		return nil, errors.Wrap(err, "invalid headers")
	}

	var body string
	var isBase64 bool
	switch b := req.Body.(type) {
	case nil:
	case string:
		body = b
	case []byte:
		body = base64.StdEncoding.EncodeToString(b)
		isBase64 = true
	default:
		contentType, declared := headers.Lookup("content-type")
		mediaType := contentType.First()
		if !declared {
			mediaType = bodycodec.TypeJSON
			headers["content-type"] = params.Single(mediaType)
		}
		if body, err = bodycodec.Encode(mediaType, b); err != nil {
			return nil, err
		}
	}

	headerSingles, headerMultis := headers.Views()
	querySingles, queryMultis := params.FromValues(query).Views()

	method := strings.ToUpper(req.Method)
	event := &events.APIGatewayProxyRequest{
		Resource:                        path,
		Path:                            path,
		HTTPMethod:                      method,
		Headers:                         headerSingles,
		MultiValueHeaders:               headerMultis,
		QueryStringParameters:           querySingles,
		MultiValueQueryStringParameters: queryMultis,
		Body:                            body,
		IsBase64Encoded:                 isBase64,
		RequestContext: events.APIGatewayProxyRequestContext{
			AccountID:    "000000000000",
			ResourceID:   "test-invoke",
			Stage:        "test",
			RequestID:    uuid.NewString(),
			ResourcePath: path,
			HTTPMethod:   method,
			APIID:        "test-invoke",
		},
	}
	return event, nil
}

func unwrapResult(raw events.APIGatewayProxyResponse) *TestResult {
	result := &TestResult{
		StatusCode: raw.StatusCode,
		Headers:    params.Merge(raw.Headers, raw.MultiValueHeaders),
		Raw:        raw,
	}
	if raw.IsBase64Encoded {
		if decoded, err := base64.StdEncoding.DecodeString(raw.Body); err == nil {
			result.Body = decoded
			return result
		}
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw.Body), &decoded); err == nil && raw.Body != "" {
		result.Body = decoded
	} else {
		result.Body = raw.Body
	}
	return result
}
