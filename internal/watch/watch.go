// Package watch rescans a fixed set of listing pages on a cron schedule.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/IshaanNene/dealscout/internal/dom"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/rank"
	"github.com/IshaanNene/dealscout/internal/scan"
	"github.com/IshaanNene/dealscout/internal/storage"
	"github.com/IshaanNene/dealscout/internal/types"
)

// SourceOpener loads a listing URL as a card source.
type SourceOpener interface {
	Open(ctx context.Context, rawURL string) (dom.Source, error)
}

// Watcher scans every configured URL each time the schedule fires.
type Watcher struct {
	urls        []string
	schedule    string
	concurrency int

	opener   SourceOpener
	scanner  *scan.Scanner
	opts     scan.Options
	store    storage.Storage
	detector *ChangeDetector
	notifier Notifier
	metrics  *observability.Metrics
	logger   *slog.Logger

	cron    *cron.Cron
	running sync.Mutex
	rounds  sync.WaitGroup
	stopped atomic.Bool
}

// Config holds the watcher's wiring.
type Config struct {
	URLs        []string
	Schedule    string
	Concurrency int
	Options     scan.Options

	// Detector and Notifier are optional.
	Detector *ChangeDetector
	Notifier Notifier
}

// New creates a Watcher. store and metrics may be nil.
func New(cfg Config, opener SourceOpener, scanner *scan.Scanner, store storage.Storage, metrics *observability.Metrics, logger *slog.Logger) *Watcher {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Watcher{
		urls:        cfg.URLs,
		schedule:    cfg.Schedule,
		concurrency: concurrency,
		opener:      opener,
		scanner:     scanner,
		opts:        cfg.Options,
		store:       store,
		detector:    cfg.Detector,
		notifier:    cfg.Notifier,
		metrics:     metrics,
		logger:      logger.With("component", "watcher"),
		cron:        cron.New(),
	}
}

// Start registers the schedule and runs one round immediately.
func (w *Watcher) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.schedule, func() { w.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	w.logger.Info("watcher starting", "schedule", w.schedule, "urls", len(w.urls), "concurrency", w.concurrency)
	w.cron.Start()
	w.rounds.Add(1)
	go func() {
		defer w.rounds.Done()
		w.RunOnce(ctx)
	}()
	return nil
}

// Stop halts the schedule and waits for a running round to finish. No
// round starts after Stop returns.
func (w *Watcher) Stop() {
	w.stopped.Store(true)
	<-w.cron.Stop().Done()
	w.rounds.Wait()
	w.running.Lock()
	defer w.running.Unlock()
	w.logger.Info("watcher stopped")
}

// RunOnce scans every URL once. Rounds never overlap: a round that fires
// while another is running is skipped.
func (w *Watcher) RunOnce(ctx context.Context) []*types.ScanResult {
	if w.stopped.Load() {
		return nil
	}
	if !w.running.TryLock() {
		w.logger.Warn("previous round still running, skipping")
		return nil
	}
	defer w.running.Unlock()

	start := time.Now()
	results := make([]*types.ScanResult, len(w.urls))
	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup

	for i, u := range w.urls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, u string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = w.scanURL(ctx, u)
		}(i, u)
	}
	wg.Wait()

	out := results[:0]
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	w.logger.Info("round complete", "scans", len(out), "duration", time.Since(start))
	return out
}

func (w *Watcher) scanURL(ctx context.Context, rawURL string) *types.ScanResult {
	src, err := w.opener.Open(ctx, rawURL)
	if err != nil {
		w.logger.Warn("open failed", "url", rawURL, "error", err)
		res := types.Failed(uuid.NewString(), rawURL, err.Error())
		w.persist(res)
		return res
	}
	defer func() {
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	res := w.scanner.Scan(ctx, src, w.opts)
	w.persist(res)
	w.detect(ctx, res)

	if idx := rank.Cheapest(res.Records); idx >= 0 {
		rec := res.Records[idx]
		w.logger.Info("lowest price",
			"url", rawURL,
			"name", rec.DisplayName,
			"price", *rec.Price,
			"href", rec.HrefString(),
		)
	}
	return res
}

func (w *Watcher) persist(res *types.ScanResult) {
	if w.store == nil {
		return
	}
	if err := w.store.Store(res); err != nil {
		w.logger.Error("store failed", "scan_id", res.ID, "backend", w.store.Name(), "error", err)
		if w.metrics != nil {
			w.metrics.StoreErrors.Add(1)
		}
		return
	}
	if w.metrics != nil {
		w.metrics.ResultsStored.Add(1)
	}
}

func (w *Watcher) detect(ctx context.Context, res *types.ScanResult) {
	if w.detector == nil {
		return
	}
	changes, err := w.detector.Detect(res)
	if err != nil {
		w.logger.Error("change detection failed", "url", res.URL, "error", err)
	}
	for _, c := range changes {
		w.logger.Info("listing changed",
			"url", c.URL,
			"restaurant", c.Restaurant,
			"type", c.Type,
			"field", c.Field,
			"old", c.OldValue,
			"new", c.NewValue,
		)
	}
	if w.notifier != nil && len(changes) > 0 {
		if err := w.notifier.Notify(ctx, changes); err != nil {
			w.logger.Warn("change notification failed", "error", err)
		}
	}
}
