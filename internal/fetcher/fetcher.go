// Package fetcher defines the Fetcher contract (spec.md §4.1): the
// pluggable collaborator that turns a filter set into a CheckResult.
// Grounded on the teacher's Source interface (monitor/source.go), which
// separates discovery from parsing; here the two collapse into one
// time-bounded Fetch call since there is exactly one upstream page, not a
// set of discoverable session files.
package fetcher

import (
	"context"
	"time"

	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/inspect"
)

// Fetcher retrieves the current appointment timetable, filtered to the
// requested cities/exam models/months. A single call must be time-bounded
// and must not mutate shared state (spec.md §4.1). On any error, no
// CheckResult is returned — partial results are never surfaced.
type Fetcher interface {
	// Name identifies this Fetcher implementation for logging.
	Name() string

	// Fetch performs one bounded fetch-and-parse cycle. Errors should be
	// categorized with internal/monerr (CategoryNetwork, CategoryParse,
	// CategoryRateLimited) so the Scheduler can apply the right retry
	// policy.
	Fetch(ctx context.Context, filters domain.Filters) (domain.CheckResult, error)
}

// DefaultTimeout bounds a single Fetch call absent an explicit
// context deadline (spec.md §4.1: "≤ 30 s default").
const DefaultTimeout = 30 * time.Second

// Diagnosable is optionally implemented by a Fetcher that can surface the
// selector/parse attempts behind its most recent Fetch call, so a
// repeated-failure Scheduler can feed them to an inspect.Recorder
// (spec.md §5: inspection data export; §7: "on repeated failure, record
// inspection data").
type Diagnosable interface {
	Diagnostics() []inspect.Record
}
