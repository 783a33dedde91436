package handler

import (
	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for the admin API handlers.
var ProviderSet = wire.NewSet(NewAdmin)
