package oauth

import (
	"github.com/google/wire"

	"github.com/mocktide/mocktide/internal/core"
)

// ProviderSet is the Wire provider set for token acquisition.
var ProviderSet = wire.NewSet(
	NewCache,
	wire.Bind(new(core.TokenSource), new(*Cache)),
)
