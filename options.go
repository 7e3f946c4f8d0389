package enforcerlambda

import (
	"github.com/creasty/defaults"
	"github.com/pkg/errors"
)

// BodyParser decodes request bodies whose content type has no built-in codec.
// Returning false declines the body, leaving the raw string to pass through
// unchanged. A returned error is surfaced to the caller as a 400.
type BodyParser func(contentType, raw string) (decoded any, handled bool, err error)

// Options adjusts how an API validates requests and renders failures. The
// zero value is completed by defaults: every Handle* switch and LogErrors on,
// routing metadata read from the x-controller/x-operation extensions.
type Options struct {
	// AllowOtherQueryParameters permits any query parameter the document does
	// not declare.
	AllowOtherQueryParameters bool
	// AllowedQueryParameters permits the named undeclared query parameters
	// only. Ignored when AllowOtherQueryParameters is set.
	AllowedQueryParameters []string
	// BodyParser handles content types outside the built-in JSON and
	// form-urlencoded codecs.
	BodyParser BodyParser

	// The Handle* switches control whether request/response defects are
	// rendered as results. When off, the matching error class is returned
	// raw from the handler instead, for the host environment to report.
	HandleBadRequest       *bool `default:"true"`
	HandleBadResponse      *bool `default:"true"`
	HandleNotFound         *bool `default:"true"`
	HandleMethodNotAllowed *bool `default:"true"`

	// LogErrors logs every converted error at the invocation boundary.
	LogErrors *bool `default:"true"`

	// XController and XOperation name the extensions the controller table
	// router resolves operations through.
	XController string `default:"x-controller"`
	XOperation  string `default:"x-operation"`
}

func (o *Options) setDefaults() error {
	return errors.Wrap(defaults.Set(o), "failed to apply option defaults")
}
