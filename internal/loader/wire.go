package loader

import (
	"github.com/google/wire"

	"github.com/mocktide/mocktide/internal/core"
)

// ProviderSet is the Wire provider set for the startup loader.
var ProviderSet = wire.NewSet(
	NewLoader,
	wire.Bind(new(Fleet), new(*core.Manager)),
)
