package textparse

import (
	"regexp"
	"strconv"
)

var (
	// "18–30 min", "25 mins", "10-15 minutes". The unit must be spelled out
	// at least as "min" so the distance abbreviation "mi" never matches.
	minutesRe = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d{1,3})(?:\s*[–—-]\s*(\d{1,3}))?\s*(?:minutes|minute|mins|min)\b`)
	hoursRe   = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d{1,2})\s*(?:hours|hour|hrs|hr)\b(?:\s*(\d{1,2})\s*(?:minutes|minute|mins|min)\b)?`)
)

// ParseMinutes returns a delivery time in minutes. For a range the lower
// bound is returned. Hour forms ("1 hr 10 min") are tried first so the
// trailing minutes are not mistaken for the whole estimate.
func ParseMinutes(s string) (int, bool) {
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		total := h * 60
		if m[2] != "" {
			mins, _ := strconv.Atoi(m[2])
			total += mins
		}
		return total, true
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		lo, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return lo, true
	}
	return 0, false
}
