package model

import (
	"errors"
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// BlockedError marks a terminal inability to proceed on one board: 401/403/
// 429 after the retry budget, or CAPTCHA markers in the body. The affected
// scraper returns what it has; the run continues on other boards.
type BlockedError struct {
	Board  Board
	Reason string
	Err    error
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("board %s blocked: %s", e.Board, e.Reason)
}

func (e *BlockedError) Unwrap() error { return e.Err }

// IsBlocked reports whether err carries a BlockedError anywhere in its chain.
func IsBlocked(err error) bool {
	var blocked *BlockedError
	return errors.As(err, &blocked)
}

// ParseError marks a missing structural element in a board response.
// Terminal for the current page; isolated per-record failures are skipped.
type ParseError struct {
	Board Board
	What  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("board %s: parsing %s failed", e.Board, e.What)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError marks a JobPost field that fails its invariant. The
// offending record is dropped and the scraper continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
