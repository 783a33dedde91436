package strategy

import (
	"context"

	"github.com/mocktide/mocktide/internal/core"
)

// staticStrategy answers with the expectation's literal body. It
// supports everything and carries the lowest priority, making it the
// fallback when no specialized strategy claims the expectation.
type staticStrategy struct{}

func (s *staticStrategy) Name() string  { return "static" }
func (s *staticStrategy) Priority() int { return 0 }

func (s *staticStrategy) Supports(*core.Expectation) bool { return true }

func (s *staticStrategy) Handle(_ context.Context, _ *core.RequestContext, exp *core.Expectation) (*core.Response, error) {
	resp := core.NewResponse(exp.Response.StatusCode)
	resp.Headers = append(resp.Headers, exp.Response.Headers...)
	resp.Body = []byte(exp.Response.Body)
	return resp, nil
}
