package textparse

import (
	"regexp"
	"strings"
)

var (
	segmentSplitRe = regexp.MustCompile(`[\n·•|]+`)
	deliveryRe     = regexp.MustCompile(`(?i)\bdelivery\b`)
	feeRe          = regexp.MustCompile(`(?i)\bfees?\b`)

	afterDotRe       = regexp.MustCompile(`\s*[·•].*$`)
	trailingRatingRe = regexp.MustCompile(`(?:^|\s+)\d\.\d.*$`)
	trailingParenRe  = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	trailingMoneyRe  = regexp.MustCompile(`\s*(?:[A-Za-z]{1,3})?\$\s?\d[\d,]*(?:\.\d{1,2})?\s*$`)
	trailingMinRe    = regexp.MustCompile(`(?i)\s*\d+(?:\s*[–—-]\s*\d+)?\s*(?:minutes|minute|mins|min)\s*$`)
)

// Segments splits card text into the short phrases separated by newlines,
// mid-dots, bullets or pipes. Empty phrases are dropped.
func Segments(s string) []string {
	parts := segmentSplitRe.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = Collapse(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Collapse trims s and folds internal whitespace runs into single spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstLine returns the first non-blank line of s.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = Collapse(line); line != "" {
			return line
		}
	}
	return ""
}

// HasDeliveryContext reports whether s mentions delivery.
func HasDeliveryContext(s string) bool {
	return deliveryRe.MatchString(s)
}

// HasFeeContext reports whether s talks about a fee of any kind.
func HasFeeContext(s string) bool {
	return feeRe.MatchString(s) || deliveryRe.MatchString(s)
}

// CleanName strips the metadata cards tend to glue onto a store name:
// anything after a mid-dot, a trailing rating, a trailing parenthetical
// count, a trailing price and a trailing "N min" estimate.
func CleanName(s string) string {
	s = Collapse(s)
	s = afterDotRe.ReplaceAllString(s, "")
	s = trailingRatingRe.ReplaceAllString(s, "")
	for {
		before := s
		s = trailingParenRe.ReplaceAllString(s, "")
		s = trailingMoneyRe.ReplaceAllString(s, "")
		s = trailingMinRe.ReplaceAllString(s, "")
		s = strings.TrimRight(strings.TrimSpace(s), ",;:-–")
		if s == before {
			break
		}
	}
	return strings.TrimSpace(s)
}
