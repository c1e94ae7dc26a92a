// Package storage persists scan results to files and databases.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/dealscout/internal/config"
	"github.com/IshaanNene/dealscout/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists one scan result.
	Store(res *types.ScanResult) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// recordColumns is the fixed column order for tabular sinks.
var recordColumns = []string{
	"name", "display_name", "price", "delivery_fee", "eta_minutes",
	"rating", "rating_count", "img", "href", "source",
}

// New builds the backend(s) named by the storage config. When Types lists
// more than one backend the result fans out to all of them.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (Storage, error) {
	names := cfg.Types
	if len(names) == 0 {
		names = []string{cfg.Type}
	}

	backends := make([]Storage, 0, len(names))
	for _, name := range names {
		backend, err := newBackend(ctx, name, cfg, logger)
		if err != nil {
			for _, b := range backends {
				_ = b.Close()
			}
			return nil, &types.StorageError{Backend: name, Err: err}
		}
		backends = append(backends, backend)
	}

	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewMultiStorage(backends, logger), nil
}

func newBackend(ctx context.Context, name string, cfg *config.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch name {
	case "json", "jsonl", "csv":
		return NewFileStorage(name, cfg.OutputPath, logger)
	case "sqlite":
		return NewSQLiteStorage(cfg.SQLitePath, logger)
	case "postgres":
		return NewPostgresStorage(ctx, cfg.PostgresURL, logger)
	case "mongodb":
		return NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDB, cfg.Collection, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", name)
	}
}

// --- Multi-Storage Fan-Out ---

// MultiStorage writes results to multiple backends.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple backends.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

// Store writes to every backend and returns the first failure.
func (s *MultiStorage) Store(res *types.ScanResult) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Store(res); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "scan_id", res.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiStorage) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
