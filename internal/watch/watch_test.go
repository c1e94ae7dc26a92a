package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/dealscout/internal/dom"
	"github.com/IshaanNene/dealscout/internal/observability"
	"github.com/IshaanNene/dealscout/internal/scan"
	"github.com/IshaanNene/dealscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const pageHTML = `<html><body>
<a data-anchor-id="StoreCard" href="/store/a"><h3>Alpha Diner</h3><span>From $9.99</span></a>
<a data-anchor-id="StoreCard" href="/store/b"><h3>Beta Bistro</h3><span>From $7.50</span></a>
</body></html>`

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	closed int
}

type closingSource struct {
	dom.Source
	onClose func()
}

func (c closingSource) Close() error { c.onClose(); return nil }

func (f *fakeOpener) Open(ctx context.Context, rawURL string) (dom.Source, error) {
	f.mu.Lock()
	f.opened = append(f.opened, rawURL)
	f.mu.Unlock()

	if strings.Contains(rawURL, "down") {
		return nil, &types.FetchError{URL: rawURL, StatusCode: 503, Err: errors.New("HTTP 503")}
	}
	src, err := dom.NewDocumentSource(&types.Response{Body: []byte(pageHTML), URL: rawURL}, testLogger)
	if err != nil {
		return nil, err
	}
	return closingSource{Source: src, onClose: func() {
		f.mu.Lock()
		f.closed++
		f.mu.Unlock()
	}}, nil
}

type memStorage struct {
	mu      sync.Mutex
	results []*types.ScanResult
}

func (m *memStorage) Store(res *types.ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}
func (m *memStorage) Close() error { return nil }
func (m *memStorage) Name() string { return "memory" }

func newTestWatcher(urls []string, opener SourceOpener, store *memStorage, metrics *observability.Metrics) *Watcher {
	opts := scan.DefaultOptions()
	opts.WaitTimeout = 0
	return New(Config{
		URLs:        urls,
		Schedule:    "@every 1h",
		Concurrency: 2,
		Options:     opts,
	}, opener, scan.New(testLogger, scan.WithMetrics(metrics)), store, metrics, testLogger)
}

func TestRunOnce(t *testing.T) {
	opener := &fakeOpener{}
	store := &memStorage{}
	metrics := observability.NewMetrics(testLogger)
	urls := []string{
		"https://www.doordash.com/a",
		"https://down.example.com/",
		"https://www.doordash.com/b",
	}
	w := newTestWatcher(urls, opener, store, metrics)

	results := w.RunOnce(context.Background())

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	// results keep URL order
	if !results[0].OK || len(results[0].Records) != 2 {
		t.Errorf("first result OK = %v, records = %d", results[0].OK, len(results[0].Records))
	}
	if results[1].OK || results[1].Error == "" || results[1].ID == "" {
		t.Errorf("failed open should give a failed result with an ID, got %+v", results[1])
	}
	if results[2].Platform != "doordash" {
		t.Errorf("Platform = %q", results[2].Platform)
	}
	if len(store.results) != 3 {
		t.Errorf("stored %d results, want 3", len(store.results))
	}
	if opener.closed != 2 {
		t.Errorf("closed %d sources, want 2", opener.closed)
	}
	if metrics.ResultsStored.Load() != 3 {
		t.Errorf("ResultsStored = %d", metrics.ResultsStored.Load())
	}
	if metrics.ScansTotal.Load() != 2 {
		t.Errorf("ScansTotal = %d, want 2", metrics.ScansTotal.Load())
	}
}

func TestRunOnceSkipsOverlap(t *testing.T) {
	w := newTestWatcher([]string{"https://www.doordash.com/"}, &fakeOpener{}, &memStorage{}, nil)

	w.running.Lock()
	if got := w.RunOnce(context.Background()); got != nil {
		t.Errorf("overlapping round returned %d results", len(got))
	}
	w.running.Unlock()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := newTestWatcher(nil, &fakeOpener{}, nil, nil)
	w.schedule = "every now and then"
	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	opener := &fakeOpener{}
	store := &memStorage{}
	w := newTestWatcher([]string{"https://www.doordash.com/"}, opener, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		n := len(store.results)
		store.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	w.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.results) != 1 {
		t.Errorf("stored %d results after start, want 1", len(store.results))
	}
}

// gatedOpener blocks every Open until release is closed.
type gatedOpener struct {
	fakeOpener
	release chan struct{}
}

func (g *gatedOpener) Open(ctx context.Context, rawURL string) (dom.Source, error) {
	<-g.release
	return g.fakeOpener.Open(ctx, rawURL)
}

func TestStopWaitsForImmediateRound(t *testing.T) {
	opener := &gatedOpener{release: make(chan struct{})}
	store := &memStorage{}
	w := newTestWatcher([]string{"https://www.doordash.com/"}, opener, store, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)
	close(opener.release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}

	store.mu.Lock()
	n := len(store.results)
	store.mu.Unlock()
	time.Sleep(50 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.results) != n {
		t.Errorf("results stored after Stop returned: %d then %d", n, len(store.results))
	}
	if got := w.RunOnce(context.Background()); got != nil {
		t.Errorf("RunOnce after Stop = %v, want nil", got)
	}
}
