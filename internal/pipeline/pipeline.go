// Package pipeline normalizes extracted records: invalid records are
// dropped, values sanitized and duplicates removed.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/dealscout/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.Record) (*types.Record, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.Record) (*types.Record, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Record: current,
				Err:    err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "name", rec.Name)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Run processes every record in order and returns the survivors. Nil
// entries are skipped. A record whose middleware fails is dropped and
// logged; the rest of the batch still goes through.
func (p *Pipeline) Run(records []*types.Record) []*types.Record {
	out := make([]*types.Record, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		result, err := p.Process(rec)
		if err != nil {
			p.logger.Warn("record rejected", "error", err)
			continue
		}
		if result != nil {
			out = append(out, result)
		}
	}
	return out
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// NewNormalizer builds the standard normalization chain. Each call gets
// fresh dedup state.
func NewNormalizer(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&SanitizeMiddleware{})
	p.Use(&RequireNameMiddleware{})
	p.Use(&RangeCheckMiddleware{})
	p.Use(NewDedupMiddleware())
	return p
}

// Normalize drops nil and nameless records and removes duplicates by
// canonical href or name, keeping the first occurrence. Input order is
// otherwise preserved and the input records are not modified. Running it
// on its own output returns the same list.
func Normalize(records []*types.Record, logger *slog.Logger) []*types.Record {
	cloned := make([]*types.Record, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			cloned = append(cloned, rec.Clone())
		}
	}
	return NewNormalizer(logger).Run(cloned)
}
