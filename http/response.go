package http

import (
	"fmt"
	"strconv"

	"github.com/momentics/reactor-http/buffer"
)

// Response is the response model assembled by handlers and serialized by
// Write, per spec.md §3/§4.8.
type Response struct {
	Status   int
	Body     []byte
	Headers  map[string]string
	Redirect string // non-empty enables the Location header on a 3xx Status
}

// NewResponse returns a Response defaulted to status 200 with an empty
// header set.
func NewResponse() *Response {
	return &Response{Status: 200, Headers: make(map[string]string)}
}

// SetHeader sets a response header, overwriting any existing value.
func (r *Response) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}

// SetBody sets the response body as the given bytes.
func (r *Response) SetBody(b []byte) { r.Body = b }

// SetBodyString sets the response body from a string.
func (r *Response) SetBodyString(s string) { r.Body = []byte(s) }

// Redirected marks this response as a redirect to url with the given 3xx
// status.
func (r *Response) Redirected(status int, url string) {
	r.Status = status
	r.Redirect = url
}

// Write serializes the response into out, per spec.md §4.8's assembly
// rule: status line, Content-Length (unless already set or body empty),
// Content-Type (default application/octet-stream if missing), Location on
// a redirect, Connection: keep-alive/close, blank line, body.
func (r *Response) Write(out *buffer.Buffer, keepAlive bool) {
	reason := statusReason(r.Status)
	out.AppendString(fmt.Sprintf("HTTP/1.1 %d %s\r\n", r.Status, reason))

	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	if len(r.Body) > 0 {
		if _, ok := r.Headers["Content-Length"]; !ok {
			r.Headers["Content-Length"] = strconv.Itoa(len(r.Body))
		}
	}
	if _, ok := r.Headers["Content-Type"]; !ok {
		r.Headers["Content-Type"] = "application/octet-stream"
	}
	if r.Redirect != "" && r.Status/100 == 3 {
		r.Headers["Location"] = r.Redirect
	}
	if keepAlive {
		r.Headers["Connection"] = "keep-alive"
	} else {
		r.Headers["Connection"] = "close"
	}

	for k, v := range r.Headers {
		out.AppendString(k)
		out.AppendString(": ")
		out.AppendString(v)
		out.AppendString("\r\n")
	}
	out.AppendString("\r\n")
	out.Append(r.Body)
}
