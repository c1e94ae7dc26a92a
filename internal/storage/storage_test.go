package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleResult() *types.ScanResult {
	return &types.ScanResult{
		ID:       "scan-1",
		URL:      "https://www.doordash.com/",
		Platform: "doordash",
		OK:       true,
		RankMode: "fee",
		Records: []*types.Record{
			{
				Name:        "Taco Stop",
				DisplayName: "Taco Stop",
				DeliveryFee: types.Float(0),
				ETAMinutes:  types.Int(15),
				Rating:      types.Float(4.2),
				Href:        types.String("https://www.doordash.com/store/taco-stop-2"),
				Source:      types.SourceDOM,
			},
			{
				Name:        "Pizza Palace",
				DisplayName: "Pizza Palace",
				DeliveryFee: types.Float(2.99),
				RatingCount: types.String("1,200+"),
				Source:      types.SourceDOM,
			},
		},
		CardsFound: 3,
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Elapsed:    120 * time.Millisecond,
	}
}

func TestJSONStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("json", dir, testLogger)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	if err := s.Store(sampleResult()); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "scans.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got []struct {
		ID      string
		Records []map[string]any
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].ID != "scan-1" || len(got[0].Records) != 2 {
		t.Fatalf("unexpected output: %s", data)
	}
	first := got[0].Records[0]
	if fee, ok := first["deliveryFee"].(float64); !ok || fee != 0 {
		t.Errorf("deliveryFee = %v, want 0", first["deliveryFee"])
	}
	if v, present := first["price"]; !present || v != nil {
		t.Errorf("price = %v (present %v), want null", v, present)
	}
}

func TestJSONLStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("jsonl", dir, testLogger)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	if err := s.Store(sampleResult()); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "records.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var rows []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var row map[string]any
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d lines, want 2", len(rows))
	}
	if rows[1]["name"] != "Pizza Palace" || rows[1]["_scan_id"] != "scan-1" || rows[1]["_platform"] != "doordash" {
		t.Errorf("unexpected row: %v", rows[1])
	}
}

func TestCSVStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("csv", dir, testLogger)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	if err := s.Store(sampleResult()); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	// a failed scan adds no rows
	if err := s.Store(types.Failed("scan-2", "https://x.test/", "boom")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "records.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}

	col := make(map[string]int)
	for i, h := range rows[0] {
		col[h] = i
	}
	if rows[1][col["delivery_fee"]] != "0.00" {
		t.Errorf("free delivery = %q, want 0.00", rows[1][col["delivery_fee"]])
	}
	if rows[1][col["price"]] != "" {
		t.Errorf("absent price = %q, want empty", rows[1][col["price"]])
	}
	if rows[2][col["rating_count"]] != "1,200+" {
		t.Errorf("rating_count = %q", rows[2][col["rating_count"]])
	}
}

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "dealscout.db")
	s, err := NewSQLiteStorage(path, testLogger)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	defer s.Close()

	if err := s.Store(sampleResult()); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := s.Records("scan-1")
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Name != "Taco Stop" || got[0].DeliveryFee == nil || *got[0].DeliveryFee != 0 {
		t.Errorf("first = %+v", got[0])
	}
	if got[0].Price != nil {
		t.Errorf("Price = %v, want nil", *got[0].Price)
	}
	if got[1].RatingCount == nil || *got[1].RatingCount != "1,200+" {
		t.Errorf("RatingCount = %v", got[1].RatingCount)
	}

	// duplicate scan IDs are rejected and roll back
	if err := s.Store(sampleResult()); err == nil {
		t.Error("expected error for duplicate scan")
	}
	got, _ = s.Records("scan-1")
	if len(got) != 2 {
		t.Errorf("after rollback got %d records, want 2", len(got))
	}
}

type failingStorage struct{ stored int }

func (f *failingStorage) Store(*types.ScanResult) error { f.stored++; return errors.New("disk full") }
func (f *failingStorage) Close() error                  { return nil }
func (f *failingStorage) Name() string                  { return "failing" }

type countingStorage struct{ stored, closed int }

func (c *countingStorage) Store(*types.ScanResult) error { c.stored++; return nil }
func (c *countingStorage) Close() error                  { c.closed++; return nil }
func (c *countingStorage) Name() string                  { return "counting" }

func TestMultiStorage(t *testing.T) {
	bad := &failingStorage{}
	good := &countingStorage{}
	m := NewMultiStorage([]Storage{bad, good}, testLogger)

	if err := m.Store(sampleResult()); err == nil {
		t.Error("expected first backend error")
	}
	if good.stored != 1 {
		t.Errorf("good backend stored %d, want 1", good.stored)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if good.closed != 1 {
		t.Errorf("good backend closed %d times", good.closed)
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	s, err := New(context.Background(), &config.StorageConfig{Type: "jsonl", OutputPath: dir}, testLogger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Name() != "jsonl" {
		t.Errorf("Name() = %q", s.Name())
	}
	s.Close()

	s, err = New(context.Background(), &config.StorageConfig{Types: []string{"json", "csv"}, OutputPath: dir}, testLogger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Name() != "multi" {
		t.Errorf("Name() = %q, want multi", s.Name())
	}
	s.Close()

	_, err = New(context.Background(), &config.StorageConfig{Type: "parquet", OutputPath: dir}, testLogger)
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "parquet" {
		t.Errorf("error = %v, want StorageError for parquet", err)
	}
}
