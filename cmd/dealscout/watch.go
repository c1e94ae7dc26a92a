package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/fetcher"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/scan"
	"github.com/IshaanNene/dealscout/internal/storage"
	"github.com/IshaanNene/dealscout/internal/watch"
)

var (
	watchCron string
	watchURLs []string
)

// watchCmd creates the "watch" subcommand.
func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [url...]",
		Short: "Rescan listing pages on a schedule",
		Long: `Scan the configured listing pages on a cron schedule and store every
result in the configured storage backends. URLs given as arguments are
added to watch.urls.`,
		RunE: runWatch,
	}

	cmd.Flags().StringVar(&watchCron, "cron", "", "cron schedule (e.g. \"@every 15m\", \"*/10 * * * *\")")
	cmd.Flags().StringSliceVar(&watchURLs, "url", nil, "listing URL to watch (repeatable)")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) {
		if watchCron != "" {
			cfg.Watch.Cron = watchCron
		}
		cfg.Watch.URLs = append(cfg.Watch.URLs, watchURLs...)
		cfg.Watch.URLs = append(cfg.Watch.URLs, args...)
	})
	if err != nil {
		return err
	}
	if len(cfg.Watch.URLs) == 0 {
		return fmt.Errorf("no URLs to watch: set watch.urls or pass them as arguments")
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

	wcfg := watch.Config{
		URLs:        cfg.Watch.URLs,
		Schedule:    cfg.Watch.Cron,
		Concurrency: cfg.Watch.Concurrency,
		Options:     opts,
	}
	if cfg.Watch.SnapshotDir != "" {
		wcfg.Detector, err = watch.NewChangeDetector(cfg.Watch.SnapshotDir, logger)
		if err != nil {
			return err
		}
	}
	if cfg.Watch.WebhookURL != "" {
		wcfg.Notifier = watch.NewWebhookNotifier(cfg.Watch.WebhookURL, logger)
	}

	w := watch.New(wcfg,
		newOpener(cfg, f, metrics, logger),
		scan.New(logger, scan.WithMetrics(metrics), scan.WithProfiles(profiles)),
		store, metrics, logger,
	)

	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()

	snap := metrics.Snapshot()
	logger.Info("watch stopped",
		"scans", snap["dealscout_scans_total"],
		"failed", snap["dealscout_scans_failed_total"],
		"stored", snap["dealscout_results_stored_total"],
	)
	return nil
}
