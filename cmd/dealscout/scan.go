package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/dom"
	"github.com/IshaanNene/dealscout/internal/fetcher"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/scan"
	"github.com/IshaanNene/dealscout/internal/storage"
	"github.com/IshaanNene/dealscout/internal/types"
)

var (
	scanFile       string
	scanBaseURL    string
	scanRank       string
	scanWait       time.Duration
	scanFormat     string
	scanOutput     string
	scanStore      bool
	scanNoEmbedded bool
	scanBrowser    bool
	scanProfile    string
)

// scanCmd creates the "scan" subcommand.
func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Scan one listing page",
		Long: `Load a listing page and extract one record per restaurant card.

Without --output or --store the scan result is printed as JSON on stdout.
A failed scan still prints a result (ok=false with an error message).`,
		Args: func(cmd *cobra.Command, args []string) error {
			if scanFile != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: runScan,
	}

	cmd.Flags().StringVar(&scanFile, "file", "", "scan a saved HTML file instead of a URL")
	cmd.Flags().StringVar(&scanBaseURL, "base-url", "", "URL relative links in --file resolve against")
	cmd.Flags().StringVarP(&scanRank, "rank", "r", "", "rank mode: none, price, fee, eta, rating")
	cmd.Flags().DurationVarP(&scanWait, "wait", "w", 0, "how long to wait for cards (e.g. 4500ms)")
	cmd.Flags().StringVarP(&scanFormat, "format", "f", "json", "output format with --output: json, jsonl, csv")
	cmd.Flags().StringVarP(&scanOutput, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&scanStore, "store", false, "write to the configured storage backends")
	cmd.Flags().BoolVar(&scanNoEmbedded, "no-embedded", false, "disable the embedded page data fallback")
	cmd.Flags().BoolVar(&scanBrowser, "browser", false, "load the page in a headless browser")
	cmd.Flags().StringVarP(&scanProfile, "profile", "p", "", "force a site profile instead of matching the host")

	return cmd
}

// runScan executes the scan command.
func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(applyScanOverrides(cmd))
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
	if scanProfile != "" {
		p, ok := profiles.Get(scanProfile)
		if !ok {
			return fmt.Errorf("unknown profile %q (known: %s)", scanProfile, strings.Join(profiles.IDs(), ", "))
		}
		opts.Profile = p
	}

	var target string
	if len(args) > 0 {
		target = args[0]
		if err := config.ValidateURL(target); err != nil {
			return fmt.Errorf("invalid URL %q: %w", target, err)
		}
	}
	if scanBaseURL != "" {
		if err := config.ValidateURL(scanBaseURL); err != nil {
			return fmt.Errorf("invalid --base-url: %w", err)
		}
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	metrics := observability.NewMetrics(logger)
	scanner := scan.New(logger, scan.WithMetrics(metrics), scan.WithProfiles(profiles))

	var res *types.ScanResult
	if scanFile != "" {
		res, err = scanFileSource(ctx, scanner, opts, logger)
		if err != nil {
			return err
		}
	} else {
		res = scanURL(ctx, cfg, target, scanner, opts, metrics, logger)
	}

	return emit(ctx, cmd, cfg, res, logger)
}

// applyScanOverrides applies command-line flag values to the config.
func applyScanOverrides(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		if scanRank != "" {
			cfg.Scan.RankMode = strings.ToLower(scanRank)
		}
		if cmd.Flags().Changed("wait") {
			cfg.Scan.WaitTimeout = scanWait
		}
		if scanNoEmbedded {
			cfg.Scan.EmbeddedFallback = false
		}
		if scanBrowser {
			cfg.Fetcher.Type = "browser"
		}
		if scanOutput != "" {
			cfg.Storage.Type = strings.ToLower(scanFormat)
			cfg.Storage.Types = nil
			cfg.Storage.OutputPath = scanOutput
		}
	}
}

func scanFileSource(ctx context.Context, scanner *scan.Scanner, opts scan.Options, logger *slog.Logger) (*types.ScanResult, error) {
	body, err := os.ReadFile(scanFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", scanFile, err)
	}
	src, err := dom.NewDocumentSource(types.NewSnapshotResponse(scanBaseURL, body), logger)
	if err != nil {
		if errors.Is(err, types.ErrEmptyDocument) {
			return types.Failed(uuid.NewString(), scanBaseURL, err.Error()), nil
		}
		return nil, fmt.Errorf("parse %s: %w", scanFile, err)
	}
	// a saved page is complete; there is nothing to wait for
	opts.WaitTimeout = 0
	return scanner.Scan(ctx, src, opts), nil
}

func scanURL(ctx context.Context, cfg *config.Config, target string, scanner *scan.Scanner, opts scan.Options, metrics *observability.Metrics, logger *slog.Logger) *types.ScanResult {
	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return types.Failed(uuid.NewString(), target, err.Error())
	}
	defer f.Close()

	src, err := newOpener(cfg, f, metrics, logger).Open(ctx, target)
	if err != nil {
		logger.Warn("page load failed", "url", target, "error", err)
		return types.Failed(uuid.NewString(), target, err.Error())
	}
	defer fetcher.CloseSource(src)

	return scanner.Scan(ctx, src, opts)
}

// emit prints the result or hands it to storage.
func emit(ctx context.Context, cmd *cobra.Command, cfg *config.Config, res *types.ScanResult, logger *slog.Logger) error {
	if scanOutput == "" && !scanStore {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	store, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	if err := store.Store(res); err != nil {
		store.Close()
		return fmt.Errorf("store result: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scan %s: ok=%v records=%d -> %s\n", res.ID, res.OK, len(res.Records), store.Name())
	if !res.OK {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", res.Error)
	}
	return nil
}
