package enforcerlambda

import (
	"log/slog"
)

// ServerOption mutates a dev server under construction.
type ServerOption func(*Server)

// WithServerLogger sets the dev server's logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreamBodyParser handles request bodies of content types the server
// does not buffer itself.
func WithStreamBodyParser(parser StreamBodyParser) ServerOption {
	return func(s *Server) {
		s.bodyParser = parser
	}
}
