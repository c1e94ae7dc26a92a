package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRecordJSONKeepsFreeDistinctFromAbsent(t *testing.T) {
	r := &Record{
		Name:        "Taco Stop",
		DisplayName: "Taco Stop",
		DeliveryFee: Float(0),
		Source:      SourceDOM,
	}

	data, err := r.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}

	if v, ok := m["deliveryFee"].(float64); !ok || v != 0 {
		t.Errorf("deliveryFee = %v, want 0", m["deliveryFee"])
	}
	for _, key := range []string{"price", "etaMinutes", "rating", "ratingCount", "img", "href"} {
		v, present := m[key]
		if !present {
			t.Errorf("%s missing, want null", key)
		} else if v != nil {
			t.Errorf("%s = %v, want null", key, v)
		}
	}
}

func TestRecordToFlatMap(t *testing.T) {
	r := &Record{
		Name:        "Pizza Palace",
		DisplayName: "Pizza Palace",
		Price:       Float(12.5),
		ETAMinutes:  Int(25),
		DeliveryFee: Float(0),
		Rating:      Float(4.6),
		RatingCount: String("1,200+"),
		Source:      SourceEmbedded,
	}

	flat := r.ToFlatMap()

	want := map[string]string{
		"name":         "Pizza Palace",
		"price":        "12.50",
		"delivery_fee": "0.00",
		"eta_minutes":  "25",
		"rating":       "4.6",
		"rating_count": "1,200+",
		"img":          "",
		"href":         "",
		"source":       "embedded",
	}
	for k, v := range want {
		if flat[k] != v {
			t.Errorf("flat[%q] = %q, want %q", k, flat[k], v)
		}
	}
}

func TestRecordClone(t *testing.T) {
	r := &Record{Name: "A", Price: Float(5), Href: String("https://x.test/store/a")}
	c := r.Clone()

	*c.Price = 9
	*c.Href = "changed"
	c.Name = "B"

	if *r.Price != 5 || *r.Href != "https://x.test/store/a" || r.Name != "A" {
		t.Errorf("Clone shares state with original: %+v", r)
	}
	if r.Clone().ETAMinutes != nil {
		t.Error("absent field became present after Clone")
	}
}

func TestFailedResult(t *testing.T) {
	res := Failed("id-1", "https://x.test/", "target closed")
	if res.OK || res.Error != "target closed" || res.Records == nil || res.Len() != 0 {
		t.Errorf("unexpected failed result: %+v", res)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"records":[]`) {
		t.Errorf("records should encode as an empty array: %s", data)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
	}{
		{"fetch", &FetchError{URL: "https://x.test", StatusCode: 503, Err: base}},
		{"source", &SourceError{Op: "query", Pattern: "div[", Err: base}},
		{"card", &CardError{Index: 2, Err: base}},
		{"storage", &StorageError{Backend: "csv", Err: base}},
		{"pipeline", &PipelineError{Stage: "dedup", Err: base}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, base) {
				t.Errorf("errors.Is(%v, base) = false", tt.err)
			}
			if !strings.Contains(tt.err.Error(), "boom") {
				t.Errorf("Error() = %q", tt.err.Error())
			}
		})
	}
}

func TestResponseDocument(t *testing.T) {
	resp := NewSnapshotResponse("https://x.test/", []byte("<html><body><h3>A</h3></body></html>"))
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc.Find("h3").Text() != "A" {
		t.Errorf("h3 = %q", doc.Find("h3").Text())
	}
	if again, _ := resp.Document(); again != doc {
		t.Error("Document() should be cached")
	}

	if _, err := NewSnapshotResponse("https://x.test/", nil).Document(); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("error = %v, want ErrEmptyDocument", err)
	}
}
