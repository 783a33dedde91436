package pki

import (
	"github.com/google/wire"

	"github.com/mocktide/mocktide/internal/config"
	"github.com/mocktide/mocktide/internal/core"
)

// ProvideStore builds the material store from process configuration.
func ProvideStore(conf *config.Config) (*Store, error) {
	return NewStore(conf.ScratchDir(), conf.CleanupOnShutdown())
}

// ProviderSet is the Wire provider set for TLS material handling.
var ProviderSet = wire.NewSet(
	ProvideStore,
	NewValidator,
	wire.Bind(new(core.MaterialStore), new(*Store)),
	wire.Bind(new(core.CertValidator), new(*Validator)),
)
