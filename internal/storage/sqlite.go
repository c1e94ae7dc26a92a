package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/IshaanNene/dealscout/internal/types"
)

// SQLiteStorage writes scans and their records to a local SQLite file.
type SQLiteStorage struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewSQLiteStorage opens (or creates) the database and applies the schema.
func NewSQLiteStorage(dbPath string, logger *slog.Logger) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	s := &SQLiteStorage{
		db:     db,
		path:   dbPath,
		logger: logger.With("component", "sqlite_storage"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		url TEXT,
		platform TEXT,
		ok BOOLEAN,
		error TEXT,
		rank_mode TEXT,
		cards_found INTEGER,
		cards_skipped INTEGER,
		used_embedded BOOLEAN,
		timed_out BOOLEAN,
		started_at DATETIME,
		elapsed_ms INTEGER
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY,
		scan_id TEXT NOT NULL,
		position INTEGER,
		name TEXT NOT NULL,
		display_name TEXT,
		price REAL,
		eta_minutes INTEGER,
		delivery_fee REAL,
		rating REAL,
		rating_count TEXT,
		img TEXT,
		href TEXT,
		source TEXT,
		FOREIGN KEY (scan_id) REFERENCES scans(id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_scan ON records(scan_id);
	CREATE INDEX IF NOT EXISTS idx_records_href ON records(href);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Name() string { return "sqlite" }

// Store writes the scan row and its records in one transaction.
func (s *SQLiteStorage) Store(res *types.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO scans (id, url, platform, ok, error, rank_mode, cards_found, cards_skipped,
			used_embedded, timed_out, started_at, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.URL, res.Platform, res.OK, res.Error, res.RankMode, res.CardsFound, res.CardsSkipped,
		res.UsedEmbedded, res.TimedOut, res.StartedAt, res.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	for i, rec := range res.Records {
		_, err := tx.Exec(`
			INSERT INTO records (scan_id, position, name, display_name, price, eta_minutes, delivery_fee,
				rating, rating_count, img, href, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, i, rec.Name, rec.DisplayName, rec.Price, rec.ETAMinutes, rec.DeliveryFee,
			rec.Rating, rec.RatingCount, rec.Img, rec.Href, rec.Source,
		)
		if err != nil {
			return fmt.Errorf("insert record %q: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	s.count++
	s.logger.Debug("scan stored in sqlite", "scan_id", res.ID, "records", len(res.Records))
	return nil
}

// Records returns the stored records of one scan in their stored order.
func (s *SQLiteStorage) Records(scanID string) ([]*types.Record, error) {
	rows, err := s.db.Query(`
		SELECT name, display_name, price, eta_minutes, delivery_fee, rating, rating_count, img, href, source
		FROM records WHERE scan_id = ? ORDER BY position`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Record
	for rows.Next() {
		var (
			rec                      types.Record
			price, fee, rating       sql.NullFloat64
			eta                      sql.NullInt64
			count, img, href, source sql.NullString
		)
		if err := rows.Scan(&rec.Name, &rec.DisplayName, &price, &eta, &fee, &rating, &count, &img, &href, &source); err != nil {
			return nil, err
		}
		if price.Valid {
			rec.Price = types.Float(price.Float64)
		}
		if eta.Valid {
			rec.ETAMinutes = types.Int(int(eta.Int64))
		}
		if fee.Valid {
			rec.DeliveryFee = types.Float(fee.Float64)
		}
		if rating.Valid {
			rec.Rating = types.Float(rating.Float64)
		}
		if count.Valid {
			rec.RatingCount = types.String(count.String)
		}
		if img.Valid {
			rec.Img = types.String(img.String)
		}
		if href.Valid {
			rec.Href = types.String(href.String)
		}
		rec.Source = source.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	s.logger.Info("sqlite storage closing", "path", s.path, "total_scans", s.count)
	return s.db.Close()
}
