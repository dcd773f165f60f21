// Package monerr defines the error taxonomy from spec.md §7: categories,
// not concrete types, so that component boundaries can classify failures
// uniformly and the central error-handler can route retry/fallback/skip/stop
// decisions per category.
package monerr

import (
	"errors"
	"fmt"
	"time"
)

// Category is one of the error taxonomy buckets from spec.md §7.
type Category string

const (
	CategoryNetwork       Category = "network"       // transient: retry next tick
	CategoryTimeout       Category = "timeout"       // transient: retry next tick
	CategoryParse         Category = "parse"         // single scheduler retry, then warn+continue
	CategoryRateLimited   Category = "rate-limited"  // transient: honor retryAfter
	CategoryConfiguration Category = "configuration" // fatal: refuse to start/reconfigure
	CategoryFilesystem    Category = "filesystem"    // degrade, except the error log itself
	CategoryNotification  Category = "notification"  // contained: channel retry then fallback
	CategoryCritical      Category = "critical"      // assertion violation: Controller -> ERROR
)

// Retryable reports whether the category is transient and worth retrying
// at the next scheduled tick without operator intervention.
func (c Category) Retryable() bool {
	switch c {
	case CategoryNetwork, CategoryTimeout, CategoryParse, CategoryRateLimited:
		return true
	default:
		return false
	}
}

// Fatal reports whether the category should stop the Controller outright.
func (c Category) Fatal() bool {
	return c == CategoryConfiguration || c == CategoryCritical
}

// MonitorError is a categorized, annotated error as it crosses a component
// boundary (spec.md §7: "annotate with {operation, component, timestamp,
// sessionId?}").
type MonitorError struct {
	Category  Category
	Operation string
	Component string
	Timestamp time.Time
	SessionID string
	RetryAfter time.Duration // only meaningful for CategoryRateLimited
	Err       error
}

func (e *MonitorError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("[%s/%s] %s (session=%s): %v", e.Component, e.Category, e.Operation, e.SessionID, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s: %v", e.Component, e.Category, e.Operation, e.Err)
}

func (e *MonitorError) Unwrap() error { return e.Err }

// New wraps err as a MonitorError with the given category/operation/component,
// stamping the current time.
func New(category Category, component, operation string, err error) *MonitorError {
	return &MonitorError{
		Category:  category,
		Operation: operation,
		Component: component,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// WithSession attaches a session id, returning the same error for chaining.
func (e *MonitorError) WithSession(sessionID string) *MonitorError {
	e.SessionID = sessionID
	return e
}

// WithRetryAfter attaches a retry-after hint (RateLimited category).
func (e *MonitorError) WithRetryAfter(d time.Duration) *MonitorError {
	e.RetryAfter = d
	return e
}

// As-compatible sentinel errors for the Fetcher contract (spec.md §4.1).
var (
	ErrNetwork  = errors.New("network error")
	ErrParse    = errors.New("parse error")
	ErrRateLimited = errors.New("rate limited")
)

// CategoryOf returns the Category of err if it is a *MonitorError, else
// CategoryCritical (an unclassified error is the most conservative case).
func CategoryOf(err error) Category {
	var me *MonitorError
	if errors.As(err, &me) {
		return me.Category
	}
	return CategoryCritical
}
