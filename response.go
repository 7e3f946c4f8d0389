package enforcerlambda

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// Response accumulates the status, headers and body a handler wants to send.
// Its mutators only populate the accumulator; nothing is written until the
// invocation completes, when the collected response is validated against the
// contract and serialized into the invocation result. All mutators return the
// receiver so calls chain.
type Response struct {
	statusCode        int
	headers           map[string]string
	multiValueHeaders map[string][]string
	body              any
}

func newResponse() *Response {
	return &Response{
		statusCode:        http.StatusOK,
		headers:           map[string]string{},
		multiValueHeaders: map[string][]string{},
	}
}

// Status sets the response status code. The default is 200.
func (r *Response) Status(code int) *Response {
	r.statusCode = code
	return r
}

// Set sets a single-valued header, replacing any previous value. Header names
// are stored lowercased.
func (r *Response) Set(name, value string) *Response {
	r.headers[strings.ToLower(name)] = value
	return r
}

// Get reads back a header previously written with Set. Headers the contract
// or the host environment would add by default are not visible here.
func (r *Response) Get(name string) string {
	return r.headers[strings.ToLower(name)]
}

// Send sets the response body, replacing any previous value. Called with no
// argument it leaves the body untouched, so a body already written survives a
// bare Send while Send(nil) clears it.
func (r *Response) Send(body ...any) *Response {
	if len(body) > 0 {
		r.body = body[0]
	}
	return r
}

// Redirect answers with a location header and a redirect status, 302 unless
// another code is given.
func (r *Response) Redirect(location string, code ...int) *Response {
	status := http.StatusFound
	if len(code) > 0 {
		status = code[0]
	}
	return r.Status(status).Set("location", location)
}

// Cookie appends a serialized set-cookie entry. Repeated calls accumulate:
// each cookie becomes its own entry in the multi-valued header list.
func (r *Response) Cookie(name, value string, opts ...CookieOptions) *Response {
	var opt CookieOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	_ = defaults.Set(&opt)
	r.multiValueHeaders["set-cookie"] = append(r.multiValueHeaders["set-cookie"], opt.serialize(name, value))
	return r
}

// ClearCookie removes the first previously appended set-cookie entry whose
// serialized form starts with name. Later entries for the same name survive.
func (r *Response) ClearCookie(name string) *Response {
	cookies := r.multiValueHeaders["set-cookie"]
	for i, entry := range cookies {
		if strings.HasPrefix(entry, name) {
			r.multiValueHeaders["set-cookie"] = append(cookies[:i], cookies[i+1:]...)
			break
		}
	}
	return r
}

// CookieOptions controls set-cookie serialization. The zero value serializes
// with path "/" and percent-encoded values.
type CookieOptions struct {
	Domain string
	Path   string `default:"/"`
	// MaxAge is rendered as whole seconds, rounded half away from zero.
	MaxAge   time.Duration
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	// Encode escapes the cookie value. Defaults to url.QueryEscape.
	Encode func(string) string
}

func (o CookieOptions) serialize(name, value string) string {
	encode := o.Encode
	if encode == nil {
		encode = url.QueryEscape
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(encode(value))
	if o.MaxAge != 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.FormatInt(int64(math.Round(o.MaxAge.Seconds())), 10))
	}
	if o.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(o.Domain)
	}
	if o.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(o.Path)
	}
	if !o.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(o.Expires.UTC().Format(http.TimeFormat))
	}
	if o.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if o.Secure {
		b.WriteString("; Secure")
	}
	switch o.SameSite {
	case http.SameSiteLaxMode:
		b.WriteString("; SameSite=Lax")
	case http.SameSiteStrictMode:
		b.WriteString("; SameSite=Strict")
	case http.SameSiteNoneMode:
		b.WriteString("; SameSite=None")
	}
	return b.String()
}
