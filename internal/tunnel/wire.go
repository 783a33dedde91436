package tunnel

import (
	"github.com/google/wire"

	"github.com/mocktide/mocktide/internal/config"
	"github.com/mocktide/mocktide/internal/core"
)

// ProvideSupervisor builds the supervisor from configuration, with
// lazy cluster client construction.
func ProvideSupervisor(conf *config.Config) *Supervisor {
	return NewSupervisor(conf.KubectlPath(), nil)
}

// ProviderSet is the Wire provider set for tunnel supervision.
var ProviderSet = wire.NewSet(
	ProvideSupervisor,
	wire.Bind(new(core.TunnelRunner), new(*Supervisor)),
)
