// Package strategy implements the response algorithms the dispatcher
// selects between: static bodies, templated bodies and file downloads,
// server-sent event scripts and relaying to remote origins.
package strategy

import (
	"log/slog"

	"github.com/mocktide/mocktide/internal/core"
)

// Provider builds strategy sets for listeners. It implements
// core.StrategyProvider.
type Provider struct {
	tokens core.TokenSource
	log    *slog.Logger
}

func NewProvider(tokens core.TokenSource) *Provider {
	return &Provider{
		tokens: tokens,
		log:    slog.Default().With("component", "strategy"),
	}
}

// BaseStrategies returns the strategies every listener carries. The
// instances are stateless and shared.
func (p *Provider) BaseStrategies() []core.Strategy {
	return []core.Strategy{
		&staticStrategy{},
		&fileTemplateStrategy{log: p.log},
		&sseStrategy{},
	}
}

// RelayStrategy compiles the listener's relay rules into a strategy.
// Prefix patterns are validated here so a bad rule fails listener
// creation instead of the first request.
func (p *Provider) RelayStrategy(rules []core.RelayRule) (core.Strategy, error) {
	return newRelayStrategy(rules, p.tokens, p.log)
}
