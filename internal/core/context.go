package core

import (
	"encoding/json"
	"io"
	"net/http"
)

// RequestContext is the strategy-facing view of one incoming request.
// The body has been read in full; templates see it as a JSON tree.
type RequestContext struct {
	Method        string
	Path          string
	RawQuery      string
	Header        http.Header
	Cookies       []*http.Cookie
	Body          []byte
	PathVariables map[string]string
}

// NewRequestContext captures the request, consuming its body.
func NewRequestContext(r *http.Request) (*RequestContext, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return &RequestContext{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header,
		Cookies:  r.Cookies(),
		Body:     body,
	}, nil
}

// TemplateData builds the value tree templates render against:
// headers (first value per name, as received), body (JSON tree or
// empty object), cookies, and pathVariables.
func (c *RequestContext) TemplateData() map[string]any {
	headers := make(map[string]string, len(c.Header))
	for name, values := range c.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	var body any = map[string]any{}
	if len(c.Body) > 0 {
		var parsed any
		if err := json.Unmarshal(c.Body, &parsed); err == nil && parsed != nil {
			body = parsed
		}
	}

	cookies := make(map[string]string, len(c.Cookies))
	for _, ck := range c.Cookies {
		cookies[ck.Name] = ck.Value
	}

	pathVars := c.PathVariables
	if pathVars == nil {
		pathVars = map[string]string{}
	}

	return map[string]any{
		"headers":       headers,
		"body":          body,
		"cookies":       cookies,
		"pathVariables": pathVars,
	}
}
