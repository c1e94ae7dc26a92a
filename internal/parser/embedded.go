package parser

import (
	"encoding/json"
	"html"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/IshaanNene/dealscout/internal/textparse"
	"github.com/IshaanNene/dealscout/internal/types"
)

// Key spellings seen in embedded store objects, normalized to lowercase
// with separators removed.
var (
	embeddedNameKeys   = []string{"name", "storename", "displayname", "businessname", "title"}
	embeddedPriceKeys  = []string{"price", "displayprice", "startingprice", "minprice"}
	embeddedFeeKeys    = []string{"deliveryfee", "deliveryfeeamount", "deliveryfeedisplay", "fee"}
	embeddedETAKeys    = []string{"etaminutes", "eta", "deliverytime", "deliveryeta", "estimateddeliverytime", "displayeta"}
	embeddedRatingKeys = []string{"rating", "averagerating", "starrating", "ratingvalue", "aggregaterating"}
	embeddedCountKeys  = []string{"ratingcount", "reviewcount", "numratings", "numberofratings", "numratingsdisplaystring"}
	embeddedImgKeys    = []string{"img", "image", "imageurl", "coverimage", "coverimgurl", "headerimage", "logo"}
	embeddedHrefKeys   = []string{"href", "url", "storeurl", "link"}
)

// EmbeddedExtractor recovers records from JSON the page embeds in script
// tags, for pages whose cards are not in the DOM yet.
type EmbeddedExtractor struct {
	base *url.URL
}

// NewEmbeddedExtractor creates an embedded-data extractor resolving links
// against baseURL.
func NewEmbeddedExtractor(baseURL string) *EmbeddedExtractor {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}
	return &EmbeddedExtractor{base: base}
}

// Extract decodes each blob (a single value or an array) and returns a
// record for every object that looks like a store: a name-like key plus
// at least one rating, price, fee or ETA key. Blobs that are not JSON are
// skipped.
func (ee *EmbeddedExtractor) Extract(blobs []string) []*types.Record {
	var records []*types.Record
	for _, raw := range blobs {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		ee.walk(v, &records)
	}
	return records
}

// ExtractEmbedded is a convenience wrapper around EmbeddedExtractor.
func ExtractEmbedded(blobs []string, baseURL string) []*types.Record {
	return NewEmbeddedExtractor(baseURL).Extract(blobs)
}

func (ee *EmbeddedExtractor) walk(v any, out *[]*types.Record) {
	switch t := v.(type) {
	case map[string]any:
		if rec := ee.record(t); rec != nil {
			*out = append(*out, rec)
			return
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ee.walk(t[k], out)
		}
	case []any:
		for _, child := range t {
			ee.walk(child, out)
		}
	}
}

func normalizeKeys(obj map[string]any) map[string]any {
	m := make(map[string]any, len(obj))
	for k, v := range obj {
		k = strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(k))
		m[k] = v
	}
	return m
}

func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (ee *EmbeddedExtractor) record(obj map[string]any) *types.Record {
	m := normalizeKeys(obj)

	nameVal, ok := lookup(m, embeddedNameKeys)
	if !ok {
		return nil
	}
	name, ok := nameVal.(string)
	if !ok || textparse.Collapse(name) == "" {
		return nil
	}
	_, hasRating := lookup(m, embeddedRatingKeys)
	_, hasPrice := lookup(m, embeddedPriceKeys)
	_, hasFee := lookup(m, embeddedFeeKeys)
	_, hasETA := lookup(m, embeddedETAKeys)
	if !hasRating && !hasPrice && !hasFee && !hasETA {
		return nil
	}

	// Embedded JSON often carries entity-encoded names ("Ben &amp; Jerry's").
	name = textparse.Collapse(html.UnescapeString(name))
	display := textparse.CleanName(name)
	if display == "" {
		display = name
	}
	rec := &types.Record{Name: name, DisplayName: display, Source: types.SourceEmbedded}

	if v, ok := lookup(m, embeddedPriceKeys); ok {
		if f, ok := moneyValue(v, textparse.ParseAmount); ok {
			rec.Price = types.Float(f)
		}
	}
	if v, ok := lookup(m, embeddedFeeKeys); ok {
		if f, ok := moneyValue(v, textparse.ParseMoney); ok {
			rec.DeliveryFee = types.Float(f)
		}
	}
	if v, ok := lookup(m, embeddedETAKeys); ok {
		if n, ok := minutesValue(v); ok {
			rec.ETAMinutes = types.Int(n)
		}
	}
	if v, ok := lookup(m, embeddedRatingKeys); ok {
		if r, count, ok := ratingValue(v); ok {
			rec.Rating = types.Float(r)
			if count != "" {
				rec.RatingCount = types.String(count)
			}
		}
	}
	if v, ok := lookup(m, embeddedCountKeys); ok && rec.RatingCount == nil {
		if s, ok := countString(v); ok {
			rec.RatingCount = types.String(s)
		}
	}
	if v, ok := lookup(m, embeddedImgKeys); ok {
		if s, ok := urlString(v); ok {
			if abs, ok := ee.resolve(s); ok {
				rec.Img = types.String(abs)
			}
		}
	}
	if v, ok := lookup(m, embeddedHrefKeys); ok {
		if s, ok := v.(string); ok {
			if abs, ok := ee.resolveLink(s); ok {
				rec.Href = types.String(abs)
			}
		}
	}
	return rec
}

// moneyValue accepts plain numbers, numeric strings and display strings
// such as "$2.99". Objects carrying a unitAmount in cents are converted.
func moneyValue(v any, parse func(string) (float64, bool)) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if !finite(t) || t < 0 {
			return 0, false
		}
		return textparse.RoundCents(t), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return moneyValue(f, parse)
		}
		return parse(t)
	case map[string]any:
		m := normalizeKeys(t)
		if cents, ok := m["unitamount"].(float64); ok {
			return textparse.RoundCents(cents / 100), true
		}
		if v, ok := lookup(m, []string{"displaystring", "amount", "value"}); ok {
			return moneyValue(v, parse)
		}
	}
	return 0, false
}

func minutesValue(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if !finite(t) || t < 0 || t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil && n >= 0 {
			return n, true
		}
		return textparse.ParseMinutes(t)
	case map[string]any:
		m := normalizeKeys(t)
		if v, ok := lookup(m, []string{"min", "minimum", "displaystring", "value"}); ok {
			return minutesValue(v)
		}
	}
	return 0, false
}

// ratingValue handles a bare number or a schema.org AggregateRating.
func ratingValue(v any) (float64, string, bool) {
	switch t := v.(type) {
	case float64:
		if !finite(t) || t < 0 || t > 5 {
			return 0, "", false
		}
		return math.Round(t*10) / 10, "", true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return ratingValue(f)
		}
		r, ok := textparse.ParseRating(t)
		return r, "", ok
	case map[string]any:
		m := normalizeKeys(t)
		val, ok := lookup(m, []string{"ratingvalue", "average", "value"})
		if !ok {
			return 0, "", false
		}
		r, _, ok := ratingValue(val)
		if !ok {
			return 0, "", false
		}
		count := ""
		if c, ok := lookup(m, []string{"ratingcount", "reviewcount"}); ok {
			count, _ = countString(c)
		}
		return r, count, true
	}
	return 0, "", false
}

func countString(v any) (string, bool) {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case string:
		if s, ok := textparse.ParseRatingCount(t); ok {
			return s, true
		}
		s := strings.TrimSpace(t)
		return s, strings.ContainsAny(s, "0123456789")
	}
	return "", false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func urlString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case map[string]any:
		if u, ok := normalizeKeys(t)["url"].(string); ok {
			return u, u != ""
		}
	case []any:
		if len(t) > 0 {
			return urlString(t[0])
		}
	}
	return "", false
}

func (ee *EmbeddedExtractor) resolve(raw string) (string, bool) {
	return resolveAgainst(ee.base, raw)
}

func (ee *EmbeddedExtractor) resolveLink(raw string) (string, bool) {
	return resolveAgainst(originOf(ee.base), raw)
}
