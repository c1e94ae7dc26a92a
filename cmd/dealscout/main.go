package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/fetcher"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/parser"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dealscout",
		Short: "DealScout: restaurant listing scanner",
		Long: `DealScout reads food-delivery listing pages and turns each restaurant
card into a record: name, price, delivery fee, ETA, rating, image and link.

Records are deduplicated and can be ranked by delivery fee, ETA or rating.
Pages are loaded over HTTP, through a headless browser, or from a saved
HTML file.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(profilesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads, overrides and validates configuration.
func loadConfig(overrides func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if overrides != nil {
		overrides(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadProfiles returns the built-in profiles merged with the configured file.
func loadProfiles(cfg *config.Config) (*parser.ProfileSet, error) {
	if cfg.Scan.ProfilesFile == "" {
		return parser.DefaultProfiles(), nil
	}
	ps, err := parser.LoadProfilesFile(cfg.Scan.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	return ps, nil
}

// newOpener wraps f, honouring robots.txt when configured.
func newOpener(cfg *config.Config, f fetcher.Fetcher, metrics *observability.Metrics, logger *slog.Logger) *fetcher.Opener {
	o := fetcher.NewOpener(f, metrics, logger)
	if cfg.Fetcher.RespectRobots {
		o.SetRobots(fetcher.NewRobotsPolicy(nil))
	}
	return o
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("DealScout %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

// profilesCmd lists the site profiles used for card discovery.
func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List known site profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			ps, err := loadProfiles(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range ps.IDs() {
				p, _ := ps.Get(id)
				hosts := strings.Join(p.Hosts, ", ")
				if hosts == "" {
					hosts = "(fallback)"
				}
				fmt.Fprintf(out, "%-10s %s\n", p.ID, hosts)
				for _, pattern := range p.CardPatterns {
					fmt.Fprintf(out, "  %s\n", pattern)
				}
			}
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func()) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	cleanup := func() {}
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			w = f
			cleanup = func() { f.Close() }
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), cleanup
}
