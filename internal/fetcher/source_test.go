package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IshaanNene/dealscout/internal/observability"
)

func TestOpenerSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	metrics := observability.NewMetrics(testLogger)
	o := NewOpener(newTestFetcher(t, testConfig()), metrics, testLogger)

	src, err := o.Open(context.Background(), srv.URL+"/food")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer CloseSource(src)

	if src.BaseURL() != srv.URL+"/food" {
		t.Errorf("BaseURL() = %q", src.BaseURL())
	}
	cards, err := src.Cards(context.Background(), `[data-anchor-id="StoreCard"]`)
	if err != nil || len(cards) != 1 {
		t.Fatalf("Cards() = %d, %v; want 1 card", len(cards), err)
	}

	if _, err := o.Open(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}

	if metrics.FetchesTotal.Load() != 2 || metrics.FetchesFailed.Load() != 1 {
		t.Errorf("fetches = %d, failed = %d", metrics.FetchesTotal.Load(), metrics.FetchesFailed.Load())
	}
	if metrics.BytesDownloaded.Load() != int64(len(testPage)) {
		t.Errorf("bytes = %d, want %d", metrics.BytesDownloaded.Load(), len(testPage))
	}
}
