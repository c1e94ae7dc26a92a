// Package observability exposes scan counters in Prometheus text format.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for scans, fetches and storage.
type Metrics struct {
	// Scan metrics
	ScansTotal    atomic.Int64
	ScansFailed   atomic.Int64
	ScansTimedOut atomic.Int64
	EmbeddedUsed  atomic.Int64

	// Card metrics
	CardsFound   atomic.Int64
	CardsSkipped atomic.Int64
	RecordsKept  atomic.Int64

	// Fetch metrics
	FetchesTotal    atomic.Int64
	FetchesFailed   atomic.Int64
	BytesDownloaded atomic.Int64

	// Storage metrics
	ResultsStored atomic.Int64
	StoreErrors   atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

type metric struct {
	name  string
	help  string
	kind  string
	value int64
}

func (m *Metrics) collect() []metric {
	return []metric{
		{"dealscout_scans_total", "Total scans run", "counter", m.ScansTotal.Load()},
		{"dealscout_scans_failed_total", "Scans that ended with a host fault", "counter", m.ScansFailed.Load()},
		{"dealscout_scans_timed_out_total", "Scans whose card wait hit the timeout", "counter", m.ScansTimedOut.Load()},
		{"dealscout_embedded_fallback_total", "Scans answered from embedded page data", "counter", m.EmbeddedUsed.Load()},
		{"dealscout_cards_found_total", "Card nodes matched", "counter", m.CardsFound.Load()},
		{"dealscout_cards_skipped_total", "Cards skipped as hidden or unreadable", "counter", m.CardsSkipped.Load()},
		{"dealscout_records_total", "Records returned after normalization", "counter", m.RecordsKept.Load()},
		{"dealscout_fetches_total", "Listing pages requested", "counter", m.FetchesTotal.Load()},
		{"dealscout_fetches_failed_total", "Listing page requests that failed", "counter", m.FetchesFailed.Load()},
		{"dealscout_bytes_downloaded_total", "Total bytes downloaded", "counter", m.BytesDownloaded.Load()},
		{"dealscout_results_stored_total", "Scan results written to storage", "counter", m.ResultsStored.Load()},
		{"dealscout_store_errors_total", "Storage write failures", "counter", m.StoreErrors.Load()},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, mt := range m.collect() {
		fmt.Fprintf(w, "# HELP %s %s\n", mt.name, mt.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", mt.name, mt.kind)
		fmt.Fprintf(w, "%s %d\n", mt.name, mt.value)
	}
}

// Handler returns the metrics and health routes.
func (m *Metrics) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return mux
}

// StartServer serves metrics until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(path),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	snap := make(map[string]int64)
	for _, mt := range m.collect() {
		snap[mt.name] = mt.value
	}
	return snap
}
