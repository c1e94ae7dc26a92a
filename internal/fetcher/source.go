package fetcher

import (
	"context"
	"io"
	"log/slog"

	"github.com/IshaanNene/dealscout/internal/dom"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/types"
)

// Opener turns listing URLs into card sources. Browser fetchers yield a
// live page; any other fetcher yields a parsed snapshot.
type Opener struct {
	fetcher Fetcher
	robots  *RobotsPolicy
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewOpener wraps f. metrics may be nil.
func NewOpener(f Fetcher, metrics *observability.Metrics, logger *slog.Logger) *Opener {
	return &Opener{
		fetcher: f,
		metrics: metrics,
		logger:  logger.With("component", "opener"),
	}
}

// SetRobots makes Open refuse URLs the host's robots.txt disallows.
func (o *Opener) SetRobots(p *RobotsPolicy) {
	o.robots = p
}

// Open loads rawURL. Callers must Close the source when it implements
// io.Closer.
func (o *Opener) Open(ctx context.Context, rawURL string) (dom.Source, error) {
	if o.robots != nil && !o.robots.Allowed(ctx, rawURL) {
		o.logger.Info("skipping disallowed page", "url", rawURL)
		return nil, &types.FetchError{URL: rawURL, Err: types.ErrDisallowed}
	}
	o.count(func(m *observability.Metrics) { m.FetchesTotal.Add(1) })

	if bf, ok := o.fetcher.(*BrowserFetcher); ok {
		src, err := bf.Open(ctx, rawURL)
		if err != nil {
			o.count(func(m *observability.Metrics) { m.FetchesFailed.Add(1) })
			return nil, err
		}
		return src, nil
	}

	resp, err := o.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		o.count(func(m *observability.Metrics) { m.FetchesFailed.Add(1) })
		return nil, err
	}
	o.count(func(m *observability.Metrics) { m.BytesDownloaded.Add(int64(len(resp.Body))) })

	src, err := dom.NewDocumentSource(resp, o.logger)
	if err != nil {
		o.count(func(m *observability.Metrics) { m.FetchesFailed.Add(1) })
		return nil, err
	}
	o.logger.Debug("snapshot opened", "url", rawURL, "bytes", len(resp.Body), "duration", resp.FetchDuration)
	return src, nil
}

func (o *Opener) count(fn func(*observability.Metrics)) {
	if o.metrics != nil {
		fn(o.metrics)
	}
}

// CloseSource closes src when it holds resources.
func CloseSource(src dom.Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
