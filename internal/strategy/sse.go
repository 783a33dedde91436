package strategy

import (
	"context"
	"strings"

	"github.com/mocktide/mocktide/internal/core"
)

// sseStrategy plays back a scripted batch of server-sent events. The
// whole script is emitted as one event-stream body.
type sseStrategy struct{}

func (s *sseStrategy) Name() string  { return "sse" }
func (s *sseStrategy) Priority() int { return 20 }

func (s *sseStrategy) Supports(exp *core.Expectation) bool {
	return exp.Request.SSE && len(exp.Response.Messages) > 0
}

func (s *sseStrategy) Handle(_ context.Context, _ *core.RequestContext, exp *core.Expectation) (*core.Response, error) {
	var body strings.Builder
	for _, msg := range exp.Response.Messages {
		body.WriteString("data: ")
		body.WriteString(msg)
		body.WriteString("\n\n")
	}

	resp := core.NewResponse(exp.Response.StatusCode)
	resp.SetHeader("Content-Type", "text/event-stream")
	resp.SetHeader("Cache-Control", "no-cache")
	resp.SetHeader("Connection", "keep-alive")
	for _, h := range exp.Response.Headers {
		resp.SetHeader(h.Name, h.Value)
	}
	resp.Body = []byte(body.String())
	return resp, nil
}
