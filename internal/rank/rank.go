// Package rank orders records by price, fee, delivery time or rating.
package rank

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/IshaanNene/dealscout/internal/textparse"
	"github.com/IshaanNene/dealscout/internal/types"
)

// Mode is a ranking criterion.
type Mode string

const (
	// None keeps the order records were found in.
	None   Mode = "none"
	Price  Mode = "price"
	Fee    Mode = "fee"
	ETA    Mode = "eta"
	Rating Mode = "rating"
)

// Modes lists every supported mode.
var Modes = []Mode{None, Price, Fee, ETA, Rating}

// ParseMode parses a mode name. The empty string means None.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return None, nil
	case None, Price, Fee, ETA, Rating:
		return m, nil
	default:
		return None, fmt.Errorf("%w: %q (want one of none, price, fee, eta, rating)", types.ErrInvalidRankMode, s)
	}
}

func (m Mode) String() string { return string(m) }

// key extracts one comparable number from a record. Absent values map to
// +Inf for ascending keys and -Inf for descending ones so they always
// sort last. NaN and infinite values count as absent.
type key struct {
	value func(*types.Record) float64
	desc  bool
}

func ascending(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return math.Inf(1)
	}
	return *v
}

func descending(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return math.Inf(-1)
	}
	return *v
}

var (
	priceKey = key{value: func(r *types.Record) float64 { return ascending(r.Price) }}
	feeKey   = key{value: func(r *types.Record) float64 { return ascending(r.DeliveryFee) }}
	etaKey   = key{value: func(r *types.Record) float64 {
		if r.ETAMinutes == nil {
			return math.Inf(1)
		}
		return float64(*r.ETAMinutes)
	}}
	ratingKey = key{desc: true, value: func(r *types.Record) float64 { return descending(r.Rating) }}
	countKey  = key{desc: true, value: func(r *types.Record) float64 {
		if r.RatingCount == nil {
			return 0
		}
		return textparse.CountValue(*r.RatingCount)
	}}
)

var chains = map[Mode][]key{
	Price:  {priceKey, feeKey, etaKey, ratingKey, countKey},
	Fee:    {feeKey, etaKey, ratingKey, countKey},
	ETA:    {etaKey, feeKey, ratingKey, countKey},
	Rating: {ratingKey, countKey, feeKey, etaKey},
}

// Compare orders a and b under mode: negative when a ranks first,
// positive when b does, 0 when the whole tie-break chain is equal.
// Under None every pair compares equal.
func Compare(mode Mode, a, b *types.Record) int {
	for _, k := range chains[mode] {
		va, vb := k.value(a), k.value(b)
		if va == vb {
			continue
		}
		less := va < vb
		if k.desc {
			less = !less
		}
		if less {
			return -1
		}
		return 1
	}
	return 0
}

// Sort orders records in place under mode. Ties keep their input order,
// so sorting an already sorted list changes nothing.
func Sort(records []*types.Record, mode Mode) {
	if _, ok := chains[mode]; !ok {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		return Compare(mode, records[i], records[j]) < 0
	})
}

// Cheapest returns the index of the record with the lowest price, or -1
// when no record has one. The first of equal prices wins.
func Cheapest(records []*types.Record) int {
	best := -1
	for i, r := range records {
		if r == nil || math.IsInf(ascending(r.Price), 1) {
			continue
		}
		if best < 0 || *r.Price < *records[best].Price {
			best = i
		}
	}
	return best
}
