// Package textparse recovers typed values (money, minutes, ratings) from
// the loose text found on listing cards.
package textparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Optional 1-3 letter currency prefix (US$, CA$, A$), a dollar sign,
	// then an amount with optional thousands separators and 0-2 decimals.
	moneyRe = regexp.MustCompile(`(?:\b[A-Za-z]{1,3})?\$\s?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?(\d)?`)
	freeRe  = regexp.MustCompile(`(?i)\bfree\b`)
)

// ParseMoney returns the first currency amount in s, rounded to cents.
// The word "free" maps to 0. Bare decimals without a currency sign are
// never treated as money.
func ParseMoney(s string) (float64, bool) {
	if v, ok := ParseAmount(s); ok {
		return v, true
	}
	if freeRe.MatchString(s) {
		return 0, true
	}
	return 0, false
}

// ParseAmount is ParseMoney without the "free" rule: only a
// currency-marked amount counts.
func ParseAmount(s string) (float64, bool) {
	for _, m := range moneyRe.FindAllStringSubmatch(s, -1) {
		if m[3] != "" {
			// More than two fraction digits: not a price.
			continue
		}
		whole := strings.ReplaceAll(m[1], ",", "")
		num := whole
		if m[2] != "" {
			num += "." + m[2]
		}
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		return RoundCents(v), true
	}
	return 0, false
}

// RoundCents rounds v to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseDeliveryFee reads a delivery fee from a phrase that mentions
// delivery. When the phrase holds several amounts, the one closest to the
// word "delivery" wins, so "$9.49 Free delivery" is a free delivery.
func ParseDeliveryFee(s string) (float64, bool) {
	anchors := deliveryRe.FindAllStringIndex(s, -1)
	if len(anchors) == 0 {
		return 0, false
	}

	best, bestDist, found := 0.0, -1, false
	consider := func(v float64, loc []int) {
		d := distance(loc, anchors)
		if !found || d < bestDist {
			best, bestDist, found = v, d, true
		}
	}
	for _, loc := range moneyRe.FindAllStringSubmatchIndex(s, -1) {
		if loc[6] >= 0 {
			continue
		}
		if v, ok := ParseAmount(s[loc[0]:loc[1]]); ok {
			consider(v, loc[:2])
		}
	}
	for _, loc := range freeRe.FindAllStringIndex(s, -1) {
		consider(0, loc)
	}
	return best, found
}

func distance(loc []int, anchors [][]int) int {
	closest := -1
	for _, a := range anchors {
		var d int
		switch {
		case loc[1] <= a[0]:
			d = a[0] - loc[1]
		case a[1] <= loc[0]:
			d = loc[0] - a[1]
		}
		if closest < 0 || d < closest {
			closest = d
		}
	}
	return closest
}
