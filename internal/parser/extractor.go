// Package parser turns card nodes into records through ordered,
// per-field extraction strategies.
package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/IshaanNene/dealscout/internal/dom"
	"github.com/IshaanNene/dealscout/internal/textparse"
	"github.com/IshaanNene/dealscout/internal/types"
)

// Selectors shared by every site. Profile hints are tried before these.
var (
	nameSelectors = []string{
		"h1", "h2", "h3", "h4",
		`[data-testid="store-name"]`,
		`[data-test="store-name"]`,
		`[data-anchor-id*="StoreCardTitle"]`,
		".storeName",
		`[role="heading"]`,
	}
	priceSelectors = []string{
		`[data-anchor-id*="StoreCardPrice"]`,
		`[data-testid*="price"]`,
		`[data-test*="price"]`,
		".price",
	}
	feeSelectors = []string{
		`[data-anchor-id*="StoreCardDeliveryFee"]`,
		`[data-testid*="delivery-fee"]`,
		`[data-test*="delivery-fee"]`,
		".deliveryFee",
	}
	etaSelectors = []string{
		`[data-anchor-id*="StoreCardEta"]`,
		`[data-testid*="delivery-time"]`,
		`[data-test*="delivery-time"]`,
		`[data-testid="delivery-eta"]`,
		".deliveryTime",
	}
	ratingSelectors = []string{
		`[data-anchor-id*="StoreCardRating"]`,
		`[data-testid*="star-rating"]`,
		`[data-test*="rating"]`,
		".starRating",
	}

	detailLinkRe = regexp.MustCompile(`(?:^|/)(?:store|restaurant|menu|food-delivery)/`)
)

const maxFeeGroupSegments = 3

// Extractor recovers records from the cards of one page.
type Extractor struct {
	base   *url.URL
	origin *url.URL
	logger *slog.Logger

	name        []Strategy[string]
	price       []Strategy[float64]
	deliveryFee []Strategy[float64]
	eta         []Strategy[int]
	rating      []Strategy[float64]
	ratingCount []Strategy[string]
	img         []Strategy[string]
	href        []Strategy[string]
}

// NewExtractor builds the strategy lists for a page. Relative image URLs
// resolve against baseURL and relative links against its origin; profile
// may be nil.
func NewExtractor(baseURL string, profile *Profile, logger *slog.Logger) *Extractor {
	var hints Hints
	if profile != nil {
		hints = profile.Hints
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	e := &Extractor{
		base:   base,
		origin: originOf(base),
		logger: logger.With("component", "extractor"),
	}

	e.name = []Strategy[string]{
		{"heading", headingName(append(append([]string{}, hints.Name...), nameSelectors...))},
		{"aria-label", ariaLabelName},
		{"first-line", firstLineName},
	}
	e.price = []Strategy[float64]{
		{"hinted", hintedValue(withHints(hints.Price, priceSelectors), textparse.ParseAmount)},
		{"segments", priceFromSegments},
	}
	e.deliveryFee = []Strategy[float64]{
		{"hinted", hintedValue(withHints(hints.DeliveryFee, feeSelectors), textparse.ParseMoney)},
		{"segments", feeFromSegments},
		{"leaf-context", feeFromLeafContext},
	}
	e.eta = []Strategy[int]{
		{"hinted", hintedValue(withHints(hints.ETA, etaSelectors), textparse.ParseMinutes)},
		{"segments", segmentValue(func(string) bool { return true }, textparse.ParseMinutes)},
	}
	e.rating = []Strategy[float64]{
		{"hinted", hintedValue(withHints(hints.Rating, ratingSelectors), textparse.ParseRating)},
		{"context", segmentValue(textparse.HasRatingContext, textparse.ParseRating)},
		{"bare", func(n dom.Node) (float64, bool) { return textparse.ParseRating(n.Text()) }},
	}
	e.ratingCount = []Strategy[string]{
		{"hinted", hintedValue(withHints(hints.RatingCount, withHints(hints.Rating, ratingSelectors)), textparse.ParseRatingCount)},
		{"text", func(n dom.Node) (string, bool) { return textparse.ParseRatingCount(n.Text()) }},
	}
	e.img = []Strategy[string]{
		{"image", e.imageURL},
	}
	e.href = []Strategy[string]{
		{"own", e.ownLink},
		{"detail-link", e.detailLink},
		{"enclosing-link", e.enclosingLink},
	}
	return e
}

// Extract maps one card to a record. Cards without a recoverable name
// yield ErrNoName. A fault while reading the card is returned as an error
// rather than propagated.
func (e *Extractor) Extract(n dom.Node) (rec *types.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("extract card: panic: %v", r)
		}
	}()

	name, ok := FirstOf(n, e.name, e.logger)
	if !ok || name == "" {
		return nil, types.ErrNoName
	}
	display := textparse.CleanName(name)
	if display == "" {
		display = name
	}

	rec = &types.Record{
		Name:        name,
		DisplayName: display,
		Source:      types.SourceDOM,
	}
	if v, ok := FirstOf(n, e.price, e.logger); ok {
		rec.Price = types.Float(v)
	}
	if v, ok := FirstOf(n, e.deliveryFee, e.logger); ok {
		rec.DeliveryFee = types.Float(v)
	}
	if v, ok := FirstOf(n, e.eta, e.logger); ok {
		rec.ETAMinutes = types.Int(v)
	}
	if v, ok := FirstOf(n, e.rating, e.logger); ok {
		rec.Rating = types.Float(v)
	}
	if v, ok := FirstOf(n, e.ratingCount, e.logger); ok {
		rec.RatingCount = types.String(v)
	}
	if v, ok := FirstOf(n, e.img, e.logger); ok {
		rec.Img = types.String(v)
	}
	if v, ok := FirstOf(n, e.href, e.logger); ok {
		rec.Href = types.String(v)
	}
	return rec, nil
}

func withHints(hints, defaults []string) []string {
	out := make([]string, 0, len(hints)+len(defaults))
	out = append(out, hints...)
	return append(out, defaults...)
}

// --- name ---

func headingName(selectors []string) func(dom.Node) (string, bool) {
	return func(n dom.Node) (string, bool) {
		for _, sel := range selectors {
			for _, h := range n.Find(sel) {
				if name := textparse.Collapse(h.Text()); name != "" {
					return name, true
				}
			}
		}
		return "", false
	}
}

func ariaLabelName(n dom.Node) (string, bool) {
	label, ok := n.Attr("aria-label")
	if !ok {
		return "", false
	}
	name := textparse.CleanName(label)
	return name, name != ""
}

func firstLineName(n dom.Node) (string, bool) {
	name := textparse.CleanName(textparse.FirstLine(n.Text()))
	return name, name != ""
}

// --- numeric fields ---

func hintedValue[T any](selectors []string, parse func(string) (T, bool)) func(dom.Node) (T, bool) {
	return func(n dom.Node) (T, bool) {
		for _, sel := range selectors {
			for _, el := range n.Find(sel) {
				if v, ok := parse(el.Text()); ok {
					return v, true
				}
			}
		}
		var zero T
		return zero, false
	}
}

func segmentValue[T any](keep func(string) bool, parse func(string) (T, bool)) func(dom.Node) (T, bool) {
	return func(n dom.Node) (T, bool) {
		for _, seg := range textparse.Segments(n.Text()) {
			if !keep(seg) {
				continue
			}
			if v, ok := parse(seg); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
}

// priceFromSegments skips phrases about fees so "$0 delivery fee" is
// never read as the menu price. Amounts that sit in a small delivery
// group of their own are fee amounts too, even when the word "delivery"
// lives in a sibling element.
func priceFromSegments(n dom.Node) (float64, bool) {
	feeTexts := make(map[string]int)
	for _, leaf := range feeLeaves(n) {
		feeTexts[textparse.Collapse(leaf.Text())]++
	}
	for _, seg := range textparse.Segments(n.Text()) {
		if textparse.HasFeeContext(seg) {
			continue
		}
		if feeTexts[seg] > 0 {
			feeTexts[seg]--
			continue
		}
		if v, ok := textparse.ParseAmount(seg); ok {
			return v, true
		}
	}
	return 0, false
}

func feeFromSegments(n dom.Node) (float64, bool) {
	return segmentValue(textparse.HasDeliveryContext, textparse.ParseDeliveryFee)(n)
}

// feeFromLeafContext handles layouts where the amount and the word
// "delivery" sit in sibling block elements.
func feeFromLeafContext(n dom.Node) (float64, bool) {
	for _, leaf := range feeLeaves(n) {
		if v, ok := textparse.ParseMoney(leaf.Text()); ok {
			return v, true
		}
	}
	return 0, false
}

// feeLeaves returns the money-bearing leaf elements whose enclosing group
// mentions delivery. The group must be small; a parent carrying most of
// the card is not context.
func feeLeaves(n dom.Node) []dom.Node {
	var out []dom.Node
	for _, leaf := range n.Find("span, div, p, li") {
		if len(leaf.Find("*")) > 0 {
			continue
		}
		if _, ok := textparse.ParseMoney(leaf.Text()); !ok {
			continue
		}
		p, ok := leaf.Parent()
		if !ok {
			continue
		}
		if segs := textparse.Segments(p.Text()); len(segs) <= maxFeeGroupSegments && textparse.HasDeliveryContext(strings.Join(segs, " ")) {
			out = append(out, leaf)
		}
	}
	return out
}

// --- img / href ---

func (e *Extractor) imageURL(n dom.Node) (string, bool) {
	img := n
	if n.Tag() != "img" {
		imgs := n.Find("img")
		if len(imgs) == 0 {
			return "", false
		}
		img = imgs[0]
	}
	if pr, ok := img.(dom.PropertyReader); ok {
		if src, ok := pr.Property("currentSrc"); ok {
			return e.resolve(src)
		}
	}
	for _, attr := range []string{"src", "data-src"} {
		if src, ok := img.Attr(attr); ok && strings.TrimSpace(src) != "" {
			return e.resolve(src)
		}
	}
	if set, ok := img.Attr("srcset"); ok {
		if src := firstSrcsetCandidate(set); src != "" {
			return e.resolve(src)
		}
	}
	return "", false
}

func firstSrcsetCandidate(set string) string {
	first, _, _ := strings.Cut(set, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (e *Extractor) ownLink(n dom.Node) (string, bool) {
	if n.Tag() != "a" {
		return "", false
	}
	href, ok := n.Attr("href")
	if !ok {
		return "", false
	}
	return e.resolveLink(href)
}

func (e *Extractor) detailLink(n dom.Node) (string, bool) {
	for _, a := range n.Find("a[href]") {
		href, _ := a.Attr("href")
		if detailLinkRe.MatchString(href) {
			return e.resolveLink(href)
		}
	}
	return "", false
}

// enclosingLink covers cards rendered inside an anchor.
func (e *Extractor) enclosingLink(n dom.Node) (string, bool) {
	cur := n
	for range 3 {
		p, ok := cur.Parent()
		if !ok {
			return "", false
		}
		if p.Tag() == "a" {
			if href, ok := p.Attr("href"); ok {
				return e.resolveLink(href)
			}
		}
		cur = p
	}
	return "", false
}

func (e *Extractor) resolveLink(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	return resolveAgainst(e.origin, href)
}

func (e *Extractor) resolve(raw string) (string, bool) {
	return resolveAgainst(e.base, raw)
}

// originOf reduces u to scheme://host. Store links are site-absolute
// paths, so a path-relative href is taken from the site root.
func originOf(u *url.URL) *url.URL {
	if u == nil || u.Host == "" {
		return u
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}

func resolveAgainst(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base == nil || ref.IsAbs() {
		return ref.String(), true
	}
	return base.ResolveReference(ref).String(), true
}
