package metrics

import (
	"github.com/google/wire"

	"github.com/mocktide/mocktide/internal/core"
)

// ProviderSet is the Wire provider set for metrics.
var ProviderSet = wire.NewSet(
	New,
	wire.Bind(new(core.Metrics), new(*Metrics)),
)
