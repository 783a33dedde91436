package http

import (
	"github.com/google/wire"

	"github.com/mocktide/mocktide/internal/core"
)

// ProviderSet is the Wire provider set for HTTP transport.
var ProviderSet = wire.NewSet(
	NewFactory,
	wire.Bind(new(core.ServerFactory), new(*Factory)),
)
