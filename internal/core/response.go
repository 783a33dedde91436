package core

import (
	"net/http"
	"strings"
)

// Response is the strategy output: an ordered header list plus status
// and body. Headers keep their configured order when written.
type Response struct {
	StatusCode int
	Headers    []Header
	Body       []byte
}

// NewResponse returns a response with the given status, defaulting to
// 200 when unset.
func NewResponse(status int) *Response {
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{StatusCode: status}
}

// SetHeader appends a header, replacing any existing values for the
// same name (case-insensitive).
func (r *Response) SetHeader(name, value string) {
	kept := r.Headers[:0]
	for _, h := range r.Headers {
		if !strings.EqualFold(h.Name, name) {
			kept = append(kept, h)
		}
	}
	r.Headers = append(kept, Header{Name: name, Value: value})
}

// AddHeader appends a header without replacing existing values.
func (r *Response) AddHeader(name, value string) {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// HasHeader reports whether a header name is present
// (case-insensitive).
func (r *Response) HasHeader(name string) bool {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// MergeGlobal fills gaps with listener-wide headers: a global header
// is added only when the response does not already carry that name.
func (r *Response) MergeGlobal(global []Header) {
	for _, g := range global {
		if !r.HasHeader(g.Name) {
			r.Headers = append(r.Headers, g)
		}
	}
}

// Write emits the response on the wire. Header order follows the
// Headers slice.
func (r *Response) Write(w http.ResponseWriter) {
	for _, h := range r.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(r.StatusCode)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}

// TextResponse builds a plain-text response, the shape used for most
// dispatch-level failures.
func TextResponse(status int, body string) *Response {
	resp := NewResponse(status)
	resp.SetHeader("Content-Type", "text/plain")
	resp.Body = []byte(body)
	return resp
}
