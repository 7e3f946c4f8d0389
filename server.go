package enforcerlambda

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Gi60s/openapi-enforcer-lambda/internal/bodycodec"
	"github.com/Gi60s/openapi-enforcer-lambda/params"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// StreamBodyParser reads the body of an incoming dev-server request whose
// content type the server does not buffer itself. Returning false omits the
// body from the synthesized event.
type StreamBodyParser func(r *http.Request) (body string, include bool, err error)

// Server drives a LambdaHandler from a real HTTP listener, synthesizing the
// same invocation events the host environment would deliver. It exists for
// local development and socket-level tests; each connection is served
// independently.
type Server struct {
	handler    LambdaHandler
	logger     *slog.Logger
	bodyParser StreamBodyParser

	mu       sync.Mutex
	port     int
	listener net.Listener
	httpSrv  *http.Server
}

// NewServer builds a dev server around handler. Port 0 requests an
// OS-assigned ephemeral port; the effective port is available from Port once
// started.
func NewServer(port int, handler LambdaHandler, options ...ServerOption) *Server {
	_inst := &Server{
		port:    port,
		handler: handler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		opt(_inst)
	}
	return _inst
}

// Start binds the listener and serves in the background. Starting a running
// server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", s.port)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: s}
	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dev server terminated", slog.Any("error", err))
		}
	}(s.httpSrv)
	s.logger.Info("dev server listening", slog.Int("port", listener.Addr().(*net.TCPAddr).Port))
	return nil
}

// Stop drains connections and releases the listener. Stopping a stopped
// server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv == nil {
		return nil
	}
	err := s.httpSrv.Shutdown(ctx)
	s.httpSrv = nil
	s.listener = nil
	return errors.Wrap(err, "failed to stop the dev server")
}

// Port reports the effective bound port, or the configured one before Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.port
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// ServeHTTP translates one socket-level request into an invocation and the
// invocation result back onto the socket. Failures never leave the
// connection hanging: they answer a fixed 500.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	event, err := s.synthesizeEvent(r)
	if err != nil {
		s.logger.Error("failed to synthesize invocation event", slog.Any("error", err))
		writeFailure(w)
		return
	}

	ctx := lambdacontext.NewContext(r.Context(), &lambdacontext.LambdaContext{
		AwsRequestID: event.RequestContext.RequestID,
	})
	result, err := s.invoke(ctx, *event)
	if err != nil {
		s.logger.Error("handler failed", slog.Any("error", err))
		writeFailure(w)
		return
	}
	s.writeResult(w, result)
}

func (s *Server) invoke(ctx context.Context, event events.APIGatewayProxyRequest) (result events.APIGatewayProxyResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("handler panic: %v", rec)
		}
	}()
	return s.handler(ctx, event)
}

func (s *Server) synthesizeEvent(r *http.Request) (*events.APIGatewayProxyRequest, error) {
	headers := params.FromValues(url.Values(r.Header))

	var body string
	contentType, _ := headers.Lookup("content-type")
	if bufferedContentType(contentType.First()) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to buffer request body")
		}
		body = string(raw)
	} else if s.bodyParser != nil {
		parsed, include, err := s.bodyParser(r)
		if err != nil {
			return nil, errors.Wrap(err, "body parser failed")
		}
		if include {
			body = parsed
		}
	}

	headerSingles, headerMultis := headers.Views()
	querySingles, queryMultis := params.FromValues(r.URL.Query()).Views()

	event := &events.APIGatewayProxyRequest{
		Resource:                        r.URL.Path,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headerSingles,
		MultiValueHeaders:               headerMultis,
		QueryStringParameters:           querySingles,
		MultiValueQueryStringParameters: queryMultis,
		Body:                            body,
		RequestContext: events.APIGatewayProxyRequestContext{
			AccountID:    "000000000000",
			ResourceID:   "dev-server",
			Stage:        "dev",
			RequestID:    uuid.NewString(),
			ResourcePath: r.URL.Path,
			HTTPMethod:   r.Method,
			APIID:        "dev-server",
		},
	}
	return event, nil
}

// bufferedContentType reports whether the server buffers the body itself:
// JSON, form-urlencoded and plain text, parameterized variants included.
func bufferedContentType(contentType string) bool {
	mt := bodycodec.MediaType(contentType)
	return strings.HasPrefix(mt, bodycodec.TypeJSON) ||
		strings.HasPrefix(mt, bodycodec.TypeForm) ||
		strings.HasPrefix(mt, "text/plain")
}

func (s *Server) writeResult(w http.ResponseWriter, result events.APIGatewayProxyResponse) {
	for name, value := range result.Headers {
		w.Header().Set(name, value)
	}
	for name, values := range result.MultiValueHeaders {
		w.Header().Del(name)
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if result.Body == "" {
		return
	}
	if result.IsBase64Encoded {
		if decoded, err := base64.StdEncoding.DecodeString(result.Body); err == nil {
			_, _ = w.Write(decoded)
			return
		}
		s.logger.Error("result body flagged base64 but does not decode")
	}
	_, _ = io.WriteString(w, result.Body)
}

func writeFailure(w http.ResponseWriter) {
	w.Header().Set("content-type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, "Internal server error")
}
