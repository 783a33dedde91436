// Package main is the entry point for the mocktide binary. It runs a
// multi-tenant HTTP listener host: mock endpoints, templated and file
// responses, SSE playback and authenticated relaying, managed over an
// admin REST API.
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mocktide/mocktide/internal/config"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires configuration and executes the root Cobra command.
func run(ctx context.Context) error {
	conf, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rootCmd, err := newCmd(conf)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return rootCmd.ExecuteContext(ctx)
}

// newCmd constructs the root Cobra command and registers the serve
// subcommand.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "mocktide",
		Short:         "Mocktide: a multi-tenant host for HTTP mock and relay servers.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd, err := newServeCommand(conf)
	if err != nil {
		return nil, err
	}
	c.AddCommand(serveCmd)

	return c, nil
}

func newServeCommand(conf *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the host and its admin API",
		Example: "mocktide serve --address=:8299 --config-file=/etc/mocktide/servers.jsonmc",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(conf)

			a, cleanup, err := wireApp(conf)
			if err != nil {
				return fmt.Errorf("failed to assemble host: %w", err)
			}
			defer cleanup()

			return a.Run(cmd.Context())
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.ServeOptions); err != nil {
		return nil, err
	}
	return cmd, nil
}

func setupLogging(conf *config.Config) {
	level := slog.LevelInfo
	if conf.DebugEnabled() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
