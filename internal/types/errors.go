package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNoName          = errors.New("card has no name")
	ErrNoCards         = errors.New("no cards found")
	ErrUnsupportedSite = errors.New("site not supported")
	ErrEmptyDocument   = errors.New("empty document")
	ErrInvalidRankMode = errors.New("invalid rank mode")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrDisallowed      = errors.New("disallowed by robots.txt")
)

// FetchError wraps errors that occur while loading a listing page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// SourceError wraps faults raised by a card source while it is queried.
type SourceError struct {
	Op      string
	Pattern string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("card source %s (pattern=%q): %v", e.Op, e.Pattern, e.Err)
	}
	return fmt.Sprintf("card source %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// CardError describes why a single card was skipped.
type CardError struct {
	Index int
	Err   error
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card %d: %v", e.Index, e.Err)
}

func (e *CardError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur while normalizing records.
type PipelineError struct {
	Stage  string
	Record *Record
	Err    error
}

func (e *PipelineError) Error() string {
	name := ""
	if e.Record != nil {
		name = e.Record.Name
	}
	return fmt.Sprintf("pipeline error at stage %q (record %q): %v", e.Stage, name, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
