//go:build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/mocktide/mocktide/internal/app"
	"github.com/mocktide/mocktide/internal/config"
	"github.com/mocktide/mocktide/internal/core"
	"github.com/mocktide/mocktide/internal/handler"
	"github.com/mocktide/mocktide/internal/loader"
	"github.com/mocktide/mocktide/internal/metrics"
	"github.com/mocktide/mocktide/internal/oauth"
	"github.com/mocktide/mocktide/internal/pki"
	"github.com/mocktide/mocktide/internal/strategy"
	transporthttp "github.com/mocktide/mocktide/internal/transport/http"
	"github.com/mocktide/mocktide/internal/tunnel"
)

func wireApp(conf *config.Config) (*app.App, func(), error) {
	panic(wire.Build(
		app.ProviderSet,
		core.ProviderSet,
		handler.ProviderSet,
		loader.ProviderSet,
		metrics.ProviderSet,
		oauth.ProviderSet,
		pki.ProviderSet,
		strategy.ProviderSet,
		transporthttp.ProviderSet,
		tunnel.ProviderSet,
	))
}
