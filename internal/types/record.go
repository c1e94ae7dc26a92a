package types

import (
	"encoding/json"
	"strconv"
)

// Record sources.
const (
	SourceDOM      = "dom"
	SourceEmbedded = "embedded"
)

// Record is one restaurant card recovered from a listing page.
//
// Optional fields are pointers: nil means the value could not be recovered.
// A DeliveryFee pointing at 0 means the listing advertises free delivery.
type Record struct {
	Name        string   `json:"name"        bson:"name"`
	DisplayName string   `json:"displayName" bson:"display_name"`
	Price       *float64 `json:"price"       bson:"price"`
	ETAMinutes  *int     `json:"etaMinutes"  bson:"eta_minutes"`
	DeliveryFee *float64 `json:"deliveryFee" bson:"delivery_fee"`
	Rating      *float64 `json:"rating"      bson:"rating"`
	RatingCount *string  `json:"ratingCount" bson:"rating_count"`
	Img         *string  `json:"img"         bson:"img"`
	Href        *string  `json:"href"        bson:"href"`
	Source      string   `json:"source"      bson:"source"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// HrefString returns the href or "" when absent.
func (r *Record) HrefString() string {
	if r.Href == nil {
		return ""
	}
	return *r.Href
}

// ToJSON serializes the record to JSON bytes.
func (r *Record) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// ToFlatMap returns a flat map suitable for CSV export.
// Absent values become empty cells; a free delivery fee stays "0.00".
func (r *Record) ToFlatMap() map[string]string {
	flat := map[string]string{
		"name":         r.Name,
		"display_name": r.DisplayName,
		"source":       r.Source,
	}
	flat["price"] = formatMoney(r.Price)
	flat["delivery_fee"] = formatMoney(r.DeliveryFee)
	flat["eta_minutes"] = ""
	if r.ETAMinutes != nil {
		flat["eta_minutes"] = strconv.Itoa(*r.ETAMinutes)
	}
	flat["rating"] = ""
	if r.Rating != nil {
		flat["rating"] = strconv.FormatFloat(*r.Rating, 'f', 1, 64)
	}
	flat["rating_count"] = deref(r.RatingCount)
	flat["img"] = deref(r.Img)
	flat["href"] = deref(r.Href)
	return flat
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.Price != nil {
		c.Price = Float(*r.Price)
	}
	if r.ETAMinutes != nil {
		c.ETAMinutes = Int(*r.ETAMinutes)
	}
	if r.DeliveryFee != nil {
		c.DeliveryFee = Float(*r.DeliveryFee)
	}
	if r.Rating != nil {
		c.Rating = Float(*r.Rating)
	}
	if r.RatingCount != nil {
		c.RatingCount = String(*r.RatingCount)
	}
	if r.Img != nil {
		c.Img = String(*r.Img)
	}
	if r.Href != nil {
		c.Href = String(*r.Href)
	}
	return &c
}

func formatMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
