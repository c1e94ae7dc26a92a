package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/dealscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func rec(name, href string) *types.Record {
	r := &types.Record{Name: name, DisplayName: name, Source: types.SourceDOM}
	if href != "" {
		r.Href = types.String(href)
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

func sameNames(t *testing.T, got []*types.Record, want ...string) {
	t.Helper()
	g := names(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

func TestNormalizeDedup(t *testing.T) {
	input := []*types.Record{
		rec("Pizza Palace", "https://www.doordash.com/store/pizza-palace-1/"),
		nil,
		rec("Pizza Palace", "https://www.doordash.com/store/pizza-palace-2"),
		rec("Other Name", "https://WWW.DOORDASH.COM/store/pizza-palace-1#menu"),
		rec("  ", "https://www.doordash.com/store/blank"),
		rec("Sushi Zen", ""),
		rec("sushi  zen", "https://www.doordash.com/store/sushi-zen"),
		rec("Taco Stop", "https://www.doordash.com/store/taco?b=2&a=1"),
		rec("Taco Stop Express", "https://www.doordash.com/store/taco?a=1&b=2"),
	}

	out := Normalize(input, testLogger)
	sameNames(t, out, "Pizza Palace", "Sushi Zen", "Taco Stop")
}

func TestNormalizeIdempotent(t *testing.T) {
	input := []*types.Record{
		rec("A", "https://x.test/store/a"),
		rec("B", "https://x.test/store/b"),
		rec("A", "https://x.test/store/c"),
		rec("C", "https://x.test/store/b/"),
		rec("D", ""),
	}
	once := Normalize(input, testLogger)
	twice := Normalize(once, testLogger)
	sameNames(t, once, "A", "B", "D")
	sameNames(t, twice, names(once)...)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	r := rec("  Spaced   Name ", "")
	r.Rating = types.Float(7.5)
	out := Normalize([]*types.Record{r}, testLogger)
	if out[0].Name != "Spaced Name" {
		t.Errorf("name = %q", out[0].Name)
	}
	if out[0].Rating != nil {
		t.Error("out-of-range rating should become absent")
	}
	if r.Rating == nil || r.Name != "  Spaced   Name " {
		t.Error("input record was modified")
	}
}

func TestRangeCheckKeepsFreeDelivery(t *testing.T) {
	r := rec("Free Place", "")
	r.DeliveryFee = types.Float(0)
	r.Price = types.Float(-1)
	out, err := (&RangeCheckMiddleware{}).Process(r)
	if err != nil {
		t.Fatal(err)
	}
	if out.DeliveryFee == nil || *out.DeliveryFee != 0 {
		t.Error("free delivery must stay 0, not absent")
	}
	if out.Price != nil {
		t.Error("negative price should become absent")
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "failing" }
func (failingMiddleware) Process(r *types.Record) (*types.Record, error) {
	if r.Name == "bad" {
		return nil, errors.New("boom")
	}
	return r, nil
}

func TestPipelineErrorStage(t *testing.T) {
	p := New(testLogger)
	p.Use(failingMiddleware{})
	if p.Len() != 1 {
		t.Fatalf("Len = %d", p.Len())
	}

	_, err := p.Process(rec("bad", ""))
	var pe *types.PipelineError
	if !errors.As(err, &pe) || pe.Stage != "failing" {
		t.Fatalf("expected PipelineError from stage failing, got %v", err)
	}

	out := p.Run([]*types.Record{rec("good", ""), rec("bad", ""), rec("fine", "")})
	sameNames(t, out, "good", "fine")
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://WWW.Example.com/store/a/", "https://www.example.com/store/a"},
		{"https://example.com:443/store/a#reviews", "https://example.com/store/a"},
		{"http://example.com:80", "http://example.com/"},
		{"https://example.com/store?b=2&a=1", "https://example.com/store?a=1&b=2"},
		{"https://example.com/store/a?utm_source=feed&pickup=false", "https://example.com/store/a?pickup=false"},
		{"https://example.com/store/a?utm_source=feed", "https://example.com/store/a"},
	}
	for _, tt := range tests {
		if got := CanonicalizeURL(tt.input); got != tt.want {
			t.Errorf("CanonicalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
