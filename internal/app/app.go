// Package app assembles and runs the host: startup definitions are
// applied first, then the admin API serves until the context is
// cancelled, and the listener fleet is torn down on the way out.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mocktide/mocktide/internal/config"
	"github.com/mocktide/mocktide/internal/core"
	"github.com/mocktide/mocktide/internal/handler"
	"github.com/mocktide/mocktide/internal/loader"
	"github.com/mocktide/mocktide/internal/pki"
	"github.com/mocktide/mocktide/internal/transport"
	transporthttp "github.com/mocktide/mocktide/internal/transport/http"
)

// shutdownTimeout bounds fleet teardown after the serve loop exits.
const shutdownTimeout = 30 * time.Second

// App is the assembled host.
type App struct {
	conf    *config.Config
	manager *core.Manager
	loader  *loader.Loader
	admin   *handler.Admin
	store   *pki.Store
	log     *slog.Logger
}

func NewApp(conf *config.Config, manager *core.Manager, l *loader.Loader, admin *handler.Admin, store *pki.Store) *App {
	return &App{
		conf:    conf,
		manager: manager,
		loader:  l,
		admin:   admin,
		store:   store,
		log:     slog.Default().With("component", "app"),
	}
}

// Run blocks until ctx is cancelled or the admin server fails. The
// fleet is shut down in both cases, tunnels included.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.manager.Shutdown(stopCtx)
		a.store.Shutdown()
	}()

	if err := a.loader.Load(ctx); err != nil {
		return fmt.Errorf("apply startup definitions: %w", err)
	}

	adminSrv, err := transporthttp.NewServer(
		transporthttp.WithAddress(a.conf.Address()),
		transporthttp.WithHandler(a.admin.Mux()),
		transporthttp.WithCORS(a.conf.AllowedOrigins()),
	)
	if err != nil {
		return fmt.Errorf("create admin server: %w", err)
	}

	a.log.Info("host running", "admin", a.conf.Address())
	return transport.Serve(ctx, adminSrv)
}
