package watch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/dealscout/internal/pipeline"
	"github.com/IshaanNene/dealscout/internal/types"
)

// ChangeType identifies what kind of change occurred.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is one difference between two scans of the same page.
type Change struct {
	URL        string     `json:"url"`
	Restaurant string     `json:"restaurant"`
	Type       ChangeType `json:"type"`
	Field      string     `json:"field,omitempty"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// trackedFields are compared between scans.
var trackedFields = []string{"price", "delivery_fee", "eta_minutes", "rating", "rating_count"}

// snapshot maps a record key to its tracked field values.
type snapshot map[string]map[string]string

// ChangeDetector compares scan results against the last snapshot of the
// same page.
type ChangeDetector struct {
	snapshotDir string
	logger      *slog.Logger
	mu          sync.Mutex
}

// NewChangeDetector creates a change detector storing snapshots in dir.
func NewChangeDetector(dir string, logger *slog.Logger) (*ChangeDetector, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &ChangeDetector{
		snapshotDir: dir,
		logger:      logger.With("component", "change_detector"),
	}, nil
}

// Detect compares res against the page's last snapshot and replaces the
// snapshot. The first scan of a page sets the baseline and reports
// nothing. Failed scans are ignored so a flaky load does not read as
// every restaurant disappearing.
func (cd *ChangeDetector) Detect(res *types.ScanResult) ([]Change, error) {
	if !res.OK {
		return nil, nil
	}

	cd.mu.Lock()
	defer cd.mu.Unlock()

	current, names := snapshotOf(res.Records)
	old, err := cd.loadSnapshot(res.URL)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, cd.saveSnapshot(res.URL, current)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	now := time.Now()
	var changes []Change
	for _, key := range sortedKeys(current) {
		fields := current[key]
		prev, ok := old[key]
		if !ok {
			changes = append(changes, Change{URL: res.URL, Restaurant: names[key], Type: ChangeAdded, Timestamp: now})
			continue
		}
		for _, f := range trackedFields {
			if prev[f] != fields[f] {
				changes = append(changes, Change{
					URL:        res.URL,
					Restaurant: names[key],
					Type:       ChangeModified,
					Field:      f,
					OldValue:   prev[f],
					NewValue:   fields[f],
					Timestamp:  now,
				})
			}
		}
	}
	for _, key := range sortedKeys(old) {
		if _, ok := current[key]; !ok {
			changes = append(changes, Change{URL: res.URL, Restaurant: old[key]["name"], Type: ChangeRemoved, Timestamp: now})
		}
	}

	if err := cd.saveSnapshot(res.URL, current); err != nil {
		return changes, err
	}
	cd.logger.Debug("changes detected", "url", res.URL, "count", len(changes))
	return changes, nil
}

func snapshotOf(records []*types.Record) (snapshot, map[string]string) {
	snap := make(snapshot, len(records))
	names := make(map[string]string, len(records))
	for _, rec := range records {
		key := recordKey(rec)
		flat := rec.ToFlatMap()
		fields := map[string]string{"name": rec.DisplayName}
		for _, f := range trackedFields {
			fields[f] = flat[f]
		}
		snap[key] = fields
		names[key] = rec.DisplayName
	}
	return snap, names
}

// recordKey identifies a restaurant across scans: its canonical link when
// it has one, else its folded name.
func recordKey(rec *types.Record) string {
	if href := rec.HrefString(); href != "" {
		return pipeline.CanonicalizeURL(href)
	}
	return "name:" + strings.ToLower(strings.Join(strings.Fields(rec.Name), " "))
}

func sortedKeys(s snapshot) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (cd *ChangeDetector) loadSnapshot(pageURL string) (snapshot, error) {
	data, err := os.ReadFile(cd.snapshotPath(pageURL))
	if err != nil {
		return nil, err
	}
	var snap snapshot
	return snap, json.Unmarshal(data, &snap)
}

func (cd *ChangeDetector) saveSnapshot(pageURL string, snap snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(cd.snapshotPath(pageURL), data, 0o644)
}

func (cd *ChangeDetector) snapshotPath(pageURL string) string {
	hash := sha256.Sum256([]byte(pageURL))
	return filepath.Join(cd.snapshotDir, hex.EncodeToString(hash[:])+".json")
}

// --- Notification ---

// Notifier delivers detected changes.
type Notifier interface {
	Notify(ctx context.Context, changes []Change) error
}

// WebhookNotifier POSTs changes as JSON to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "webhook"),
	}
}

// Notify sends the changes. An empty batch sends nothing.
func (w *WebhookNotifier) Notify(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	data, err := json.Marshal(map[string]any{
		"changes":   changes,
		"count":     len(changes),
		"timestamp": time.Now(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook post: HTTP %d", resp.StatusCode)
	}

	w.logger.Debug("webhook sent", "url", w.url, "changes", len(changes))
	return nil
}
