package textparse

import (
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"From $9.49", 9.49, true},
		{"$0 delivery fee", 0, true},
		{"$2.99 delivery", 2.99, true},
		{"CA$4.5", 4.5, true},
		{"US$ 12", 12, true},
		{"$1,234.56", 1234.56, true},
		{"Free delivery", 0, true},
		{"FREE", 0, true},
		{"4.6 (1,200+)", 0, false},
		{"18–30 min", 0, false},
		{"$9.499", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseMoney(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseMoney(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseAmountIgnoresFree(t *testing.T) {
	if _, ok := ParseAmount("Free delivery"); ok {
		t.Error("ParseAmount matched a bare \"free\"")
	}
	if v, ok := ParseAmount("Free delivery on $15+ orders"); !ok || v != 15 {
		t.Errorf("ParseAmount = %v, %v; want 15, true", v, ok)
	}
}

func TestParseDeliveryFee(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"$0 delivery fee", 0, true},
		{"Delivery fee $2.99", 2.99, true},
		{"$9.49 Free delivery", 0, true},
		{"From $9.49 $1.49 delivery", 1.49, true},
		{"Free delivery", 0, true},
		{"$3.99 service fee", 0, false},
		{"20 min delivery", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseDeliveryFee(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseDeliveryFee(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"18–30 min", 18, true},
		{"10-15 minutes", 10, true},
		{"25 mins", 25, true},
		{"45min", 45, true},
		{"1 hr 10 min", 70, true},
		{"2 hours", 120, true},
		{"From $9.49 · 18–30 min · 4.6", 18, true},
		{"2.3 mi away", 0, false},
		{"1.2 mi", 0, false},
		{"$10 minimum order", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseMinutes(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseMinutes(%q) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"4.6 (1,200+)", 4.6, true},
		{"From $9.49 · 18–30 min · 4.6 (1,200+) · $0 delivery fee", 4.6, true},
		{"★ 4.8", 4.8, true},
		{"$4.5 delivery", 0, false},
		{"$ 4.5", 0, false},
		{"2.3 mi away", 0, false},
		{"9.5 rating", 0, false},
		{"12.99", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseRating(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseRating(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseRatingCount(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"4.6 (1,200+)", "1,200+", true},
		{"4.6 · 1,200+", "1,200+", true},
		{"4.9 (85)", "85", true},
		{"320 ratings", "320", true},
		{"4.7 (2k+)", "2k+", true},
		{"18–30 min", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRatingCount(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseRatingCount(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCountValue(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"1,200+", 1200},
		{"85", 85},
		{"1.5k+", 1500},
		{"(300)", 300},
		{"many", 0},
		{"NaN", 0},
		{"Inf+", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := CountValue(tt.input); got != tt.want {
			t.Errorf("CountValue(%q) = %v; want %v", tt.input, got, tt.want)
		}
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Joe's Pizza", "Joe's Pizza"},
		{"Joe's Pizza 4.6 (1,200+)", "Joe's Pizza"},
		{"Taco Town · 20–30 min", "Taco Town"},
		{"Burger Barn 25 min", "Burger Barn"},
		{"Noodle Bar (Downtown)", "Noodle Bar"},
		{"Sushi Place $2.99", "Sushi Place"},
		{"  Green   Bowl  ", "Green Bowl"},
	}

	for _, tt := range tests {
		if got := CleanName(tt.input); got != tt.want {
			t.Errorf("CleanName(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}
}

func TestSegments(t *testing.T) {
	got := Segments("From $9.49 · 18–30 min\n 4.6 (1,200+) | $0 delivery fee ")
	want := []string{"From $9.49", "18–30 min", "4.6 (1,200+)", "$0 delivery fee"}
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestContextPredicates(t *testing.T) {
	if !HasDeliveryContext("$0 Delivery Fee") {
		t.Error("expected delivery context")
	}
	if HasDeliveryContext("From $9.49") {
		t.Error("unexpected delivery context")
	}
	if !HasFeeContext("$1.99 service fee") {
		t.Error("expected fee context")
	}
	if !HasRatingContext("★ 4.5") || !HasRatingContext("Rating 4.5") {
		t.Error("expected rating context")
	}
	if HasRatingContext("4.5") {
		t.Error("unexpected rating context")
	}
}
