package types

import (
	"time"
)

// ScanResult is what a scan hands back to its caller. A scan always
// produces one: OK=false carries a human-readable Error instead of records.
type ScanResult struct {
	// ID uniquely identifies this scan.
	ID string `json:"id" bson:"scan_id"`

	// URL is the page the cards were read from.
	URL string `json:"url" bson:"url"`

	// Platform is the site profile used for card discovery.
	Platform string `json:"platform" bson:"platform"`

	// Records are the normalized, optionally ranked records.
	Records []*Record `json:"records" bson:"records"`

	// OK is false when the host environment failed during the scan.
	OK bool `json:"ok" bson:"ok"`

	// Error describes the failure when OK is false.
	Error string `json:"error,omitempty" bson:"error,omitempty"`

	// RankMode is the ordering applied to Records.
	RankMode string `json:"rankMode" bson:"rank_mode"`

	CardsFound   int  `json:"cardsFound"   bson:"cards_found"`
	CardsSkipped int  `json:"cardsSkipped" bson:"cards_skipped"`
	UsedEmbedded bool `json:"usedEmbedded" bson:"used_embedded"`
	TimedOut     bool `json:"timedOut"     bson:"timed_out"`

	StartedAt time.Time     `json:"startedAt" bson:"started_at"`
	Elapsed   time.Duration `json:"elapsed"   bson:"elapsed"`
}

// Failed builds a failure result with the given message.
func Failed(id, url, msg string) *ScanResult {
	return &ScanResult{
		ID:        id,
		URL:       url,
		OK:        false,
		Error:     msg,
		Records:   []*Record{},
		StartedAt: time.Now(),
	}
}

// Len returns the number of records.
func (r *ScanResult) Len() int {
	return len(r.Records)
}
