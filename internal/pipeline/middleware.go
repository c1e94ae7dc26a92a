package pipeline

import (
	"strings"
	"sync"

	"github.com/IshaanNene/dealscout/internal/textparse"
	"github.com/IshaanNene/dealscout/internal/types"
)

// SanitizeMiddleware folds whitespace in the name fields.
type SanitizeMiddleware struct{}

func (m *SanitizeMiddleware) Name() string { return "sanitize" }

func (m *SanitizeMiddleware) Process(rec *types.Record) (*types.Record, error) {
	rec.Name = textparse.Collapse(rec.Name)
	rec.DisplayName = textparse.Collapse(rec.DisplayName)
	if rec.DisplayName == "" {
		rec.DisplayName = rec.Name
	}
	return rec, nil
}

// RequireNameMiddleware drops records without a name.
type RequireNameMiddleware struct{}

func (m *RequireNameMiddleware) Name() string { return "require_name" }

func (m *RequireNameMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return nil, nil
	}
	return rec, nil
}

// RangeCheckMiddleware turns out-of-range values into absent ones:
// negative money or minutes, ratings outside 0-5.
type RangeCheckMiddleware struct{}

func (m *RangeCheckMiddleware) Name() string { return "range_check" }

func (m *RangeCheckMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if rec.Price != nil && *rec.Price < 0 {
		rec.Price = nil
	}
	if rec.DeliveryFee != nil && *rec.DeliveryFee < 0 {
		rec.DeliveryFee = nil
	}
	if rec.ETAMinutes != nil && *rec.ETAMinutes < 0 {
		rec.ETAMinutes = nil
	}
	if rec.Rating != nil && (*rec.Rating < 0 || *rec.Rating > 5) {
		rec.Rating = nil
	}
	if rec.RatingCount != nil && strings.TrimSpace(*rec.RatingCount) == "" {
		rec.RatingCount = nil
	}
	return rec, nil
}

// DedupMiddleware drops records whose href or name was already seen.
// Only kept records mark their keys as seen.
type DedupMiddleware struct {
	mu    sync.Mutex
	hrefs map[string]struct{}
	names map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{
		hrefs: make(map[string]struct{}),
		names: make(map[string]struct{}),
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(rec *types.Record) (*types.Record, error) {
	href := ""
	if rec.Href != nil && *rec.Href != "" {
		href = CanonicalizeURL(*rec.Href)
	}
	name := nameKey(rec.Name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if href != "" {
		if _, exists := m.hrefs[href]; exists {
			return nil, nil
		}
	}
	if _, exists := m.names[name]; exists {
		return nil, nil
	}
	if href != "" {
		m.hrefs[href] = struct{}{}
	}
	m.names[name] = struct{}{}
	return rec, nil
}

// Seen returns how many distinct names have been kept.
func (m *DedupMiddleware) Seen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.names)
}

func nameKey(name string) string {
	return strings.ToLower(textparse.Collapse(name))
}
