// Package scan runs one card-scanning pass over a listing page: wait for
// cards, extract, normalize and rank.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/dom"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/parser"
	"github.com/IshaanNene/dealscout/internal/pipeline"
	"github.com/IshaanNene/dealscout/internal/rank"
	"github.com/IshaanNene/dealscout/internal/types"
)

// Options controls a single scan.
type Options struct {
	// WaitTimeout bounds how long to wait for cards to appear. Zero means
	// a single look.
	WaitTimeout time.Duration

	// PollInterval is the pause between looks while waiting.
	PollInterval time.Duration

	RankMode    rank.Mode
	MinCardSize float64

	// EmbeddedFallback reads embedded page data when no card yields a record.
	EmbeddedFallback bool

	// Profile overrides host-based profile selection.
	Profile *parser.Profile
}

// DefaultOptions returns the standard scan options.
func DefaultOptions() Options {
	return Options{
		WaitTimeout:      4500 * time.Millisecond,
		PollInterval:     250 * time.Millisecond,
		RankMode:         rank.None,
		MinCardSize:      8,
		EmbeddedFallback: true,
	}
}

// OptionsFromConfig builds Options from the scan section of the config.
func OptionsFromConfig(cfg *config.ScanConfig) (Options, error) {
	mode, err := rank.ParseMode(cfg.RankMode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		WaitTimeout:      cfg.WaitTimeout,
		PollInterval:     cfg.PollInterval,
		RankMode:         mode,
		MinCardSize:      cfg.MinCardSize,
		EmbeddedFallback: cfg.EmbeddedFallback,
	}, nil
}

// Scanner runs scans. It keeps no state between scans.
type Scanner struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	profiles *parser.ProfileSet
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMetrics records scan counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithProfiles replaces the built-in site profiles.
func WithProfiles(ps *parser.ProfileSet) Option {
	return func(s *Scanner) { s.profiles = ps }
}

// New creates a Scanner.
func New(logger *slog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		logger: logger.With("component", "scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.profiles == nil {
		s.profiles = parser.DefaultProfiles()
	}
	return s
}

// Profiles returns the profile set used for host matching.
func (s *Scanner) Profiles() *parser.ProfileSet {
	return s.profiles
}

// Scan reads the cards currently offered by src and returns the
// normalized, ranked records. It never panics and never returns an
// error: host faults are reported through OK and Error.
func (s *Scanner) Scan(ctx context.Context, src dom.Source, opts Options) (res *types.ScanResult) {
	res = &types.ScanResult{
		ID:        uuid.NewString(),
		Records:   []*types.Record{},
		RankMode:  string(opts.RankMode),
		StartedAt: time.Now(),
	}
	if res.RankMode == "" {
		res.RankMode = string(rank.None)
	}
	logger := s.logger.With("scan_id", res.ID)

	defer func() {
		if r := recover(); r != nil {
			s.fail(res, logger, fmt.Sprintf("scan aborted: %v", r))
		}
		res.Elapsed = time.Since(res.StartedAt)
		s.record(res)
	}()

	res.URL = src.BaseURL()
	profile := opts.Profile
	if profile == nil {
		profile = s.profiles.For(hostOf(res.URL))
	}
	res.Platform = profile.ID

	cards, timedOut, err := s.waitForCards(ctx, src, profile.CardPatterns, opts)
	res.TimedOut = timedOut
	if err != nil {
		s.fail(res, logger, err.Error())
		return res
	}
	res.CardsFound = len(cards)

	extractor := parser.NewExtractor(res.URL, profile, s.logger)
	records := make([]*types.Record, 0, len(cards))
	for i, card := range cards {
		rec, err := extractCard(card, extractor, opts.MinCardSize)
		if err != nil {
			res.CardsSkipped++
			logger.Debug("card skipped", "error", &types.CardError{Index: i, Err: err})
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 && opts.EmbeddedFallback {
		records = s.embedded(ctx, src, res.URL, logger)
		res.UsedEmbedded = len(records) > 0
	}

	res.Records = pipeline.Normalize(records, s.logger)
	rank.Sort(res.Records, opts.RankMode)
	res.OK = true

	logger.Info("scan complete",
		"url", res.URL,
		"platform", res.Platform,
		"cards", res.CardsFound,
		"skipped", res.CardsSkipped,
		"records", len(res.Records),
		"embedded", res.UsedEmbedded,
		"timed_out", res.TimedOut,
	)
	return res
}

var errHidden = errors.New("card not visible")

func extractCard(card dom.Node, extractor *parser.Extractor, minSize float64) (rec *types.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	if !dom.Visible(card, minSize) {
		return nil, errHidden
	}
	return extractor.Extract(card)
}

// minQueryWindow bounds a single look at the source when no wait is
// configured, so a stalled host query cannot hold the scan.
const minQueryWindow = 500 * time.Millisecond

// waitForCards polls the card patterns until one matches or the wait
// window closes. Patterns are tried in order and the first non-empty
// batch wins. When the window closes empty-handed the scan proceeds with
// no cards. Source queries share the window's deadline.
func (s *Scanner) waitForCards(ctx context.Context, src dom.Source, patterns []string, opts Options) ([]dom.Node, bool, error) {
	deadline := time.Now().Add(opts.WaitTimeout)
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	window := opts.WaitTimeout
	if window <= 0 {
		window = minQueryWindow
	}
	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	for {
		for _, pattern := range patterns {
			cards, err := src.Cards(wctx, pattern)
			if err != nil {
				if ctx.Err() != nil {
					return nil, false, fmt.Errorf("scan cancelled: %w", ctx.Err())
				}
				if wctx.Err() != nil {
					return nil, true, nil
				}
				return nil, false, fmt.Errorf("read cards: %w", err)
			}
			if len(cards) > 0 {
				return cards, false, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, opts.WaitTimeout > 0, nil
		}

		timer := time.NewTimer(min(interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false, fmt.Errorf("scan cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *Scanner) embedded(ctx context.Context, src dom.Source, base string, logger *slog.Logger) []*types.Record {
	es, ok := src.(dom.EmbeddedSource)
	if !ok {
		return nil
	}
	ectx, cancel := context.WithTimeout(ctx, minQueryWindow)
	defer cancel()
	blobs, err := es.EmbeddedBlobs(ectx)
	if err != nil {
		logger.Warn("embedded data unavailable", "error", err)
		return nil
	}
	records := parser.ExtractEmbedded(blobs, base)
	logger.Debug("embedded fallback", "blobs", len(blobs), "records", len(records))
	return records
}

func (s *Scanner) fail(res *types.ScanResult, logger *slog.Logger, msg string) {
	res.OK = false
	res.Error = msg
	res.Records = []*types.Record{}
	logger.Warn("scan failed", "url", res.URL, "error", msg)
}

func (s *Scanner) record(res *types.ScanResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.ScansTotal.Add(1)
	if !res.OK {
		s.metrics.ScansFailed.Add(1)
	}
	if res.TimedOut {
		s.metrics.ScansTimedOut.Add(1)
	}
	if res.UsedEmbedded {
		s.metrics.EmbeddedUsed.Add(1)
	}
	s.metrics.CardsFound.Add(int64(res.CardsFound))
	s.metrics.CardsSkipped.Add(int64(res.CardsSkipped))
	s.metrics.RecordsKept.Add(int64(len(res.Records)))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
