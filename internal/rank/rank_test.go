package rank

import (
	"errors"
	"math"
	"testing"

	"github.com/IshaanNene/dealscout/internal/types"
)

type recOpt func(*types.Record)

func fee(v float64) recOpt { return func(r *types.Record) { r.DeliveryFee = types.Float(v) } }
func eta(v int) recOpt { return func(r *types.Record) { r.ETAMinutes = types.Int(v) } }
func rating(v float64) recOpt { return func(r *types.Record) { r.Rating = types.Float(v) } }
func count(v string) recOpt { return func(r *types.Record) { r.RatingCount = types.String(v) } }
func price(v float64) recOpt { return func(r *types.Record) { r.Price = types.Float(v) } }

func rec(name string, opts ...recOpt) *types.Record {
	r := &types.Record{Name: name, DisplayName: name}
	for _, o := range opts {
		o(r)
	}
	return r
}

func names(records []*types.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", None, false},
		{"none", None, false},
		{"FEE", Fee, false},
		{" eta ", ETA, false},
		{"rating", Rating, false},
		{"price", Price, false},
		{"distance", None, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v", tt.input, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, types.ErrInvalidRankMode) {
			t.Errorf("ParseMode(%q) error should wrap ErrInvalidRankMode", tt.input)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSortModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		records []*types.Record
		want    []string
	}{
		{
			name: "fee with absent last and free first",
			mode: Fee,
			records: []*types.Record{
				rec("A", fee(2.99)),
				rec("B"),
				rec("C", fee(0)),
			},
			want: []string{"C", "A", "B"},
		},
		{
			name: "fee ties broken by eta then rating then count",
			mode: Fee,
			records: []*types.Record{
				rec("A", fee(1), eta(30)),
				rec("B", fee(1), eta(20), rating(4.0)),
				rec("C", fee(1), eta(20), rating(4.5), count("100")),
				rec("D", fee(1), eta(20), rating(4.5), count("1,200+")),
			},
			want: []string{"D", "C", "B", "A"},
		},
		{
			name: "eta ties broken by fee",
			mode: ETA,
			records: []*types.Record{
				rec("A", eta(25), fee(3)),
				rec("B"),
				rec("C", eta(25), fee(0)),
				rec("D", eta(10)),
			},
			want: []string{"D", "C", "A", "B"},
		},
		{
			name: "rating desc with count then fee",
			mode: Rating,
			records: []*types.Record{
				rec("A", rating(4.2)),
				rec("B"),
				rec("C", rating(4.8), count("50")),
				rec("D", rating(4.8), count("1.5k+")),
				rec("E", rating(4.2), fee(0)),
			},
			want: []string{"D", "C", "E", "A", "B"},
		},
		{
			name: "price with absent last, ties by fee",
			mode: Price,
			records: []*types.Record{
				rec("A", price(12.5)),
				rec("B", fee(0)),
				rec("C", price(9.49), fee(2.99)),
				rec("D", price(9.49), fee(0)),
			},
			want: []string{"D", "C", "A", "B"},
		},
		{
			name: "non-finite rating ranks as absent",
			mode: Rating,
			records: []*types.Record{
				rec("A", rating(math.NaN())),
				rec("B", rating(4.5)),
				rec("C", rating(math.Inf(1))),
			},
			want: []string{"B", "A", "C"},
		},
		{
			name: "full tie keeps input order",
			mode: Fee,
			records: []*types.Record{
				rec("A", fee(1)),
				rec("B", fee(1)),
				rec("C", fee(1)),
			},
			want: []string{"A", "B", "C"},
		},
		{
			name: "none keeps insertion order",
			mode: None,
			records: []*types.Record{
				rec("B", fee(3)),
				rec("A", fee(1)),
			},
			want: []string{"B", "A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Sort(tt.records, tt.mode)
			if got := names(tt.records); !equalNames(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
			Sort(tt.records, tt.mode)
			if got := names(tt.records); !equalNames(got, tt.want) {
				t.Errorf("second sort changed order: %v", got)
			}
		})
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	records := []*types.Record{
		rec("A", fee(1), eta(20), rating(4.5), count("10")),
		rec("B", fee(1), eta(20), rating(4.5), count("10")),
		rec("C"),
		rec("D", rating(3.9)),
		rec("E", fee(0), eta(45)),
		rec("F", price(math.NaN()), rating(math.NaN()), count("NaN")),
		rec("G", price(7), rating(4.5)),
	}
	for _, mode := range Modes {
		for _, a := range records {
			for _, b := range records {
				if Compare(mode, a, b) != -Compare(mode, b, a) {
					t.Errorf("%s: Compare(%s,%s) not antisymmetric", mode, a.Name, b.Name)
				}
			}
		}
	}
	if Compare(Fee, records[0], records[1]) != 0 {
		t.Error("identical keys should compare equal")
	}
}

func TestCheapest(t *testing.T) {
	records := []*types.Record{
		rec("A"),
		rec("B", price(12.5)),
		rec("C", price(9.49)),
		rec("D", price(9.49)),
	}
	if got := Cheapest(records); got != 2 {
		t.Errorf("Cheapest = %d, want 2", got)
	}
	if got := Cheapest([]*types.Record{rec("A")}); got != -1 {
		t.Errorf("Cheapest without prices = %d, want -1", got)
	}
	if got := Cheapest([]*types.Record{rec("A", price(math.NaN())), rec("B", price(3))}); got != 1 {
		t.Errorf("Cheapest with NaN price = %d, want 1", got)
	}
	if got := Cheapest(nil); got != -1 {
		t.Errorf("Cheapest(nil) = %d", got)
	}
}
