package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/dealscout/internal/api"
	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/fetcher"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/scan"
	"github.com/IshaanNene/dealscout/internal/storage"
)

var servePort int

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API over HTTP",
		Long: `Start an HTTP server that scans listing pages on request.

  POST /api/scan       {"url": "..."} or {"html": "...", "base_url": "..."}
  GET  /api/scans      recent scan summaries
  GET  /api/scans/{id} one recent result
  GET  /api/profiles   site profiles
  GET  /api/health     liveness`,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides api.port)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) {
		if servePort > 0 {
			cfg.API.Port = servePort
		}
	})
	if err != nil {
		return err
	}

	logger, cleanup := setupLogger(cfg.Logging)
	defer cleanup()

	opts, err := scan.OptionsFromConfig(&cfg.Scan)
	if err != nil {
		return err
	}
	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path)
	}

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	store, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	server := api.NewServer(cfg.API,
		scan.New(logger, scan.WithMetrics(metrics), scan.WithProfiles(profiles)),
		opts,
		newOpener(cfg, f, metrics, logger),
		store, metrics, logger,
	)
	server.Start(ctx)

	<-ctx.Done()
	logger.Info("server stopped")
	return nil
}
