package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IshaanNene/dealscout/internal/types"
)

const postgresSchema = `
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
	started_at TIMESTAMPTZ,
	elapsed_ms BIGINT
);

CREATE TABLE IF NOT EXISTS records (
	id BIGSERIAL PRIMARY KEY,
	scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	position INTEGER,
	name TEXT NOT NULL,
	display_name TEXT,
	price DOUBLE PRECISION,
	eta_minutes INTEGER,
	delivery_fee DOUBLE PRECISION,
	rating DOUBLE PRECISION,
	rating_count TEXT,
	img TEXT,
	href TEXT,
	source TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_scan ON records(scan_id);
`

// PostgresStorage writes scans and records through a pgx connection pool.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStorage connects, pings and applies the schema.
func NewPostgresStorage(ctx context.Context, connString string, logger *slog.Logger) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &PostgresStorage{
		pool:   pool,
		logger: logger.With("component", "postgres_storage"),
	}, nil
}

func (s *PostgresStorage) Name() string { return "postgres" }

// Store writes the scan row and its records in one transaction.
func (s *PostgresStorage) Store(res *types.ScanResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO scans (id, url, platform, ok, error, rank_mode, cards_found, cards_skipped,
				used_embedded, timed_out, started_at, elapsed_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			res.ID, res.URL, res.Platform, res.OK, res.Error, res.RankMode, res.CardsFound, res.CardsSkipped,
			res.UsedEmbedded, res.TimedOut, res.StartedAt, res.Elapsed.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert scan: %w", err)
		}

		batch := &pgx.Batch{}
		for i, rec := range res.Records {
			batch.Queue(`
				INSERT INTO records (scan_id, position, name, display_name, price, eta_minutes, delivery_fee,
					rating, rating_count, img, href, source)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				res.ID, i, rec.Name, rec.DisplayName, rec.Price, rec.ETAMinutes, rec.DeliveryFee,
				rec.Rating, rec.RatingCount, rec.Img, rec.Href, rec.Source,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("scan stored in postgres", "scan_id", res.ID, "records", len(res.Records))
	return nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
