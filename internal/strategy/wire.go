package strategy

import (
	"github.com/google/wire"

	"github.com/mocktide/mocktide/internal/core"
)

// ProviderSet is the Wire provider set for response strategies.
var ProviderSet = wire.NewSet(
	NewProvider,
	wire.Bind(new(core.StrategyProvider), new(*Provider)),
)
