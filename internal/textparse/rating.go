package textparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	ratingTokenRe  = regexp.MustCompile(`\d+\.\d+`)
	distanceUnitRe = regexp.MustCompile(`(?i)^\s*(?:mi|km|miles|kilometers|m)\b`)

	countParenRe = regexp.MustCompile(`\((\d[\d,.]*[kK]?\+?)\)`)
	countBareRe  = regexp.MustCompile(`(?:^|[^\d.$])(\d{1,3}(?:,\d{3})+\+?|\d+(?:\.\d)?[kK]\+?|\d+\+)`)
	countWordRe  = regexp.MustCompile(`(?i)(\d[\d,]*\+?)\s+(?:ratings|reviews|rating|review)\b`)

	ratingContextRe = regexp.MustCompile(`(?i)[★⭐☆]|\brating|\bstars?\b`)
)

// ParseRating returns the first standalone d.d token in s that reads as a
// star rating: not part of a price, not followed by a distance unit, not
// longer than one digit on either side, and at most 5.
func ParseRating(s string) (float64, bool) {
	for _, loc := range ratingTokenRe.FindAllStringIndex(s, -1) {
		tok := s[loc[0]:loc[1]]
		if len(tok) != 3 {
			continue
		}
		if loc[0] > 0 {
			prev := s[loc[0]-1]
			if prev == '$' || prev == '.' || prev == ',' {
				continue
			}
			if prev == ' ' && loc[0] > 1 && s[loc[0]-2] == '$' {
				continue
			}
		}
		if distanceUnitRe.MatchString(s[loc[1]:]) {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || v > 5 {
			continue
		}
		return v, true
	}
	return 0, false
}

// HasRatingContext reports whether s carries a rating indicator
// (a star glyph or the word "rating").
func HasRatingContext(s string) bool {
	return ratingContextRe.MatchString(s)
}

// ParseRatingCount returns the rating count exactly as displayed, e.g.
// "(1,200+)" yields "1,200+". The value is presentation data and is
// never converted to a number here.
func ParseRatingCount(s string) (string, bool) {
	if m := countParenRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if m := countWordRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if m := countBareRe.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// CountValue coerces a displayed rating count into a number for ranking.
// "1,200+" is 1200, "1.5k+" is 1500, anything unreadable is 0.
func CountValue(s string) float64 {
	s = strings.TrimSpace(strings.Trim(s, "()"))
	s = strings.TrimSuffix(s, "+")
	s = strings.ReplaceAll(s, ",", "")
	mult := 1.0
	if strings.HasSuffix(s, "k") || strings.HasSuffix(s, "K") {
		mult = 1000
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v * mult
}
