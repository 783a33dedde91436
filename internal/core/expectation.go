package core

import (
	"strings"
	"sync"
)

// RequestMatcher selects the incoming requests an expectation answers.
// Path may contain {name} segments which bind path variables.
type RequestMatcher struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	SSE     bool              `json:"sse,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"queryStringParameters,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// ResponseSpec describes the answer for a matched request. Exactly how
// it is interpreted depends on the strategy that claims it: File wins
// over a templated Body, Messages only apply to SSE expectations.
type ResponseSpec struct {
	StatusCode int      `json:"statusCode,omitempty"`
	Headers    []Header `json:"headers,omitempty"`
	Body       string   `json:"body,omitempty"`
	File       string   `json:"file,omitempty"`
	Messages   []string `json:"messages,omitempty"`
	Interval   int      `json:"interval,omitempty"` // milliseconds, informational only
}

// Expectation pairs a request matcher with a response specification.
type Expectation struct {
	Request  RequestMatcher `json:"httpRequest"`
	Response ResponseSpec   `json:"httpResponse"`
}

// Validate rejects structurally unusable expectations.
func (e *Expectation) Validate() error {
	if e.Request.Method == "" {
		return &ErrInvalidExpectation{Reason: "httpRequest.method must not be empty"}
	}
	if e.Request.Path == "" {
		return &ErrInvalidExpectation{Reason: "httpRequest.path must not be empty"}
	}
	if e.Response.StatusCode != 0 && (e.Response.StatusCode < 100 || e.Response.StatusCode > 599) {
		return &ErrInvalidExpectation{Reason: "httpResponse.statusCode out of range"}
	}
	return nil
}

// sameRoute reports whether two expectations target the exact
// (method, path) pair. Used for latest-wins overwrite semantics.
func (e *Expectation) sameRoute(other *Expectation) bool {
	return strings.EqualFold(e.Request.Method, other.Request.Method) &&
		e.Request.Path == other.Request.Path
}

// Registry holds the ordered expectations of one listener. Reads take
// a copy-on-write snapshot so request handling never blocks on
// concurrent mutation.
type Registry struct {
	mu   sync.Mutex
	exps []*Expectation
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends an expectation, first removing prior entries that match
// the exact same (method, path) pair so the latest definition wins.
func (r *Registry) Add(e *Expectation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]*Expectation, 0, len(r.exps)+1)
	for _, old := range r.exps {
		if !old.sameRoute(e) {
			next = append(next, old)
		}
	}
	r.exps = append(next, e)
}

// Clear removes all expectations.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exps = nil
}

// Snapshot returns the current expectations in insertion order. The
// returned slice is never mutated afterwards.
func (r *Registry) Snapshot() []*Expectation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exps
}

// Len returns the number of stored expectations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.exps)
}
