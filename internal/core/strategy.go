package core

import (
	"context"
	"sort"
)

// Strategy is one response algorithm. The dispatcher asks every
// registered strategy whether it supports the matched expectation and
// invokes the supporting one with the highest priority.
type Strategy interface {
	Name() string
	Supports(exp *Expectation) bool
	Priority() int
	Handle(ctx context.Context, req *RequestContext, exp *Expectation) (*Response, error)
}

// TokenSource exchanges relay credentials for bearer tokens.
type TokenSource interface {
	AccessToken(ctx context.Context, auth RelayAuth) (string, error)
}

// StrategyProvider constructs the strategy set for a listener. The
// relay strategy exists only on listeners with relay rules and is
// built per listener because it owns the compiled rules.
type StrategyProvider interface {
	// BaseStrategies returns the shared static, file/template and
	// SSE strategies.
	BaseStrategies() []Strategy
	// RelayStrategy builds a relay strategy over the given rules.
	// AssignedHostPort must already be populated on tunneled rules.
	RelayStrategy(rules []RelayRule) (Strategy, error)
}

// sortStrategies orders strategies by descending priority, stable so
// registration order breaks ties.
func sortStrategies(strategies []Strategy) []Strategy {
	sorted := make([]Strategy, len(strategies))
	copy(sorted, strategies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return sorted
}
