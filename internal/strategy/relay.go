package strategy

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mocktide/mocktide/internal/core"
	"github.com/mocktide/mocktide/internal/match"
)

// relayTimeout bounds one upstream round trip.
const relayTimeout = 30 * time.Second

// hopHeaders are never forwarded upstream.
var hopHeaders = []string{"Host", "Content-Length", "Connection", "Upgrade"}

// skipOnCopyBack are headers the relay owns on the way back.
var skipOnCopyBack = []string{"Content-Length", "Transfer-Encoding"}

// compiledRule is a relay rule with its prefixes compiled and its HTTP
// client prepared.
type compiledRule struct {
	rule     core.RelayRule
	prefixes *match.PrefixSet
	client   *http.Client
}

// relayStrategy forwards requests to the origin behind the most
// specific matching rule prefix. It exists only on listeners with
// relay rules, where it outranks every other strategy.
type relayStrategy struct {
	rules  []compiledRule
	tokens core.TokenSource
	log    *slog.Logger
}

func newRelayStrategy(rules []core.RelayRule, tokens core.TokenSource, log *slog.Logger) (*relayStrategy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i := range rules {
		set, err := match.CompilePrefixes(rules[i].MatchPrefixes())
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{
			rule:     rules[i],
			prefixes: set,
			client:   relayClient(rules[i].IgnoreTLS),
		})
	}
	return &relayStrategy{rules: compiled, tokens: tokens, log: log}, nil
}

func relayClient(insecure bool) *http.Client {
	client := &http.Client{Timeout: relayTimeout}
	if insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

func (s *relayStrategy) Name() string  { return "relay" }
func (s *relayStrategy) Priority() int { return 30 }

func (s *relayStrategy) Supports(*core.Expectation) bool { return true }

func (s *relayStrategy) Handle(ctx context.Context, req *core.RequestContext, _ *core.Expectation) (*core.Response, error) {
	rule := s.selectRule(req.Path)
	if rule == nil {
		return core.TextResponse(http.StatusBadGateway, "No matching relay"), nil
	}

	outbound, err := s.buildRequest(ctx, rule, req)
	if err != nil {
		return nil, &core.ErrRelayTransport{Err: err}
	}

	upstream, err := rule.client.Do(outbound)
	if err != nil {
		s.log.Warn("relay round trip failed", "target", outbound.URL.String(), "error", err)
		return core.TextResponse(http.StatusBadGateway, "Error relaying request to remote server: "+err.Error()), nil
	}
	defer upstream.Body.Close()

	return copyBack(upstream)
}

// selectRule picks the rule whose best matching prefix is the most
// specific across all rules. Earlier rules win ties.
func (s *relayStrategy) selectRule(path string) *compiledRule {
	var (
		best     *compiledRule
		bestSpec int
	)
	for i := range s.rules {
		prefix, ok := s.rules[i].prefixes.Best(path)
		if !ok {
			continue
		}
		if best == nil || prefix.Specificity() > bestSpec {
			best = &s.rules[i]
			bestSpec = prefix.Specificity()
		}
	}
	return best
}

func (s *relayStrategy) buildRequest(ctx context.Context, rule *compiledRule, req *core.RequestContext) (*http.Request, error) {
	target := targetURL(&rule.rule, req)
	outbound, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}

	for name, values := range req.Header {
		if isHopHeader(name) {
			continue
		}
		for _, v := range values {
			outbound.Header.Add(name, v)
		}
	}
	for name, value := range rule.rule.Headers {
		outbound.Header.Set(name, value)
	}

	if rule.rule.HasAuth() {
		token, err := s.tokens.AccessToken(ctx, rule.rule.Auth())
		if err != nil {
			return nil, err
		}
		outbound.Header.Set("Authorization", "Bearer "+token)
	}
	return outbound, nil
}

// targetURL joins the rule's origin with the request path and query.
// An active tunnel overrides remoteUrl.
func targetURL(rule *core.RelayRule, req *core.RequestContext) string {
	base := strings.TrimSuffix(rule.RemoteURL, "/")
	if rule.AssignedHostPort > 0 {
		base = fmt.Sprintf("http://localhost:%d", rule.AssignedHostPort)
	}
	target := base + req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	return target
}

// copyBack translates the upstream response, dropping headers the
// local server recomputes.
func copyBack(upstream *http.Response) (*core.Response, error) {
	body, err := io.ReadAll(upstream.Body)
	if err != nil {
		return nil, &core.ErrRelayTransport{Err: err}
	}

	resp := core.NewResponse(upstream.StatusCode)
	for name, values := range upstream.Header {
		if isSkippedOnCopyBack(name) {
			continue
		}
		for _, v := range values {
			resp.AddHeader(name, v)
		}
	}
	resp.Body = body
	return resp, nil
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func isSkippedOnCopyBack(name string) bool {
	for _, h := range skipOnCopyBack {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}
