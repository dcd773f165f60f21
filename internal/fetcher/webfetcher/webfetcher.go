// Package webfetcher is the default Fetcher implementation (spec.md
// §4.1): it drives a headless browser over the public timetable page and
// applies a prioritized cascade of CSS selector families, since the
// upstream markup has shifted shape before and a single brittle selector
// set would turn every markup tweak into an outage.
package webfetcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/fetcher"
	"github.com/ielts-monitor/monitor/internal/inspect"
	"github.com/ielts-monitor/monitor/internal/monerr"
	"github.com/ielts-monitor/monitor/internal/obslog"
)

const component = "webfetcher"

// selectorFamily is one candidate markup shape for the timetable table.
// Families are tried in order; the first one that yields any rows wins.
// confidence is recorded on the inspect.Record logged for each attempt with
// that family (not on the parsed slots), so low-confidence parses can be
// flagged for inspection (spec.md §5: "Supplemented Features — inspection
// data export").
type selectorFamily struct {
	name        string
	rowSelector string
	confidence  float64
}

var selectorCascade = []selectorFamily{
	{name: "table-row-v2", rowSelector: "table.exam-timetable tbody tr[data-slot-id]", confidence: 1.0},
	{name: "table-row-legacy", rowSelector: "table.timetable-results tr.slot-row", confidence: 0.8},
	{name: "card-grid", rowSelector: "div.timetable-card[data-id]", confidence: 0.6},
}

// WebFetcher implements fetcher.Fetcher by rendering the timetable with
// chromedp and scraping it via selectorCascade.
type WebFetcher struct {
	baseURL string
	timeout time.Duration
	logger  obslog.Logger

	mu          sync.Mutex
	diagnostics []inspect.Record
}

// New builds a WebFetcher targeting baseURL. A zero timeout uses
// fetcher.DefaultTimeout.
func New(baseURL string, timeout time.Duration, logger obslog.Logger) *WebFetcher {
	if timeout <= 0 {
		timeout = fetcher.DefaultTimeout
	}
	if logger == nil {
		logger = obslog.Nop{}
	}
	return &WebFetcher{baseURL: baseURL, timeout: timeout, logger: logger}
}

func (f *WebFetcher) Name() string { return "web" }

// rawRow is the shape scraped out of the DOM before validation/normalization.
type rawRow struct {
	ID       string
	Date     string
	Time     string
	City     string
	ExamType string
	Location string
	Status   string
	Price    string
	URL      string
}

func (f *WebFetcher) Fetch(ctx context.Context, filters domain.Filters) (domain.CheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var (
		winningFamily string
		rows          []rawRow
		diagnostics   []inspect.Record
	)

	for _, family := range selectorCascade {
		var found []map[string]string
		err := chromedp.Run(browserCtx,
			chromedp.Navigate(f.requestURL(filters)),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Evaluate(scrapeScript(family.rowSelector), &found),
		)
		if err != nil {
			diagnostics = append(diagnostics, inspect.Record{
				Timestamp: time.Now(), Selector: family.name, Confidence: family.confidence,
				Outcome: "error", Detail: err.Error(),
			})
			f.setDiagnostics(diagnostics)
			return domain.CheckResult{}, classifyChromeError(err)
		}
		if len(found) == 0 {
			diagnostics = append(diagnostics, inspect.Record{
				Timestamp: time.Now(), Selector: family.name, Confidence: family.confidence,
				Outcome: "no-match",
			})
			continue
		}
		winningFamily = family.name
		rows = toRawRows(found)
		diagnostics = append(diagnostics, inspect.Record{
			Timestamp: time.Now(), Selector: family.name, Confidence: family.confidence,
			Outcome: "matched", Detail: fmt.Sprintf("%d rows", len(found)),
		})
		f.logger.Debug("selector-family-matched", obslog.Fields{"family": family.name, "rows": len(found)})
		break
	}

	if winningFamily == "" {
		f.setDiagnostics(diagnostics)
		return domain.CheckResult{}, monerr.New(monerr.CategoryParse, component, "fetch",
			fmt.Errorf("%w: no selector family matched the timetable page", monerr.ErrParse))
	}

	appointments := make([]domain.Appointment, 0, len(rows))
	for _, r := range rows {
		a, ok := normalizeRow(r)
		if !ok {
			diagnostics = append(diagnostics, inspect.Record{
				Timestamp: time.Now(), Selector: winningFamily, Outcome: "parse-skip",
				Detail: fmt.Sprintf("raw_id=%s", r.ID),
			})
			f.logger.Warn("parse-skip", obslog.Fields{"reason": "missing id/date/time", "raw_id": r.ID})
			continue
		}
		appointments = append(appointments, a)
	}

	f.setDiagnostics(diagnostics)
	return domain.NewCheckResult(appointments, f.requestURL(filters), time.Now()), nil
}

// setDiagnostics replaces the per-family attempt log from the most recent
// Fetch call, guarded since Diagnostics may be read from another
// goroutine (the Scheduler, on a repeated-failure retry).
func (f *WebFetcher) setDiagnostics(records []inspect.Record) {
	f.mu.Lock()
	f.diagnostics = records
	f.mu.Unlock()
}

// Diagnostics implements fetcher.Diagnosable: the selector-family
// attempts (matched/no-match/error/parse-skip) behind the most recent
// Fetch call.
func (f *WebFetcher) Diagnostics() []inspect.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inspect.Record(nil), f.diagnostics...)
}

func (f *WebFetcher) requestURL(filters domain.Filters) string {
	var b strings.Builder
	b.WriteString(f.baseURL)
	b.WriteByte('?')
	if len(filters.Cities) > 0 {
		fmt.Fprintf(&b, "cities=%s&", strings.Join(filters.Cities, ","))
	}
	if len(filters.ExamModels) > 0 {
		fmt.Fprintf(&b, "models=%s&", strings.Join(filters.ExamModels, ","))
	}
	if len(filters.Months) > 0 {
		months := make([]string, len(filters.Months))
		for i, m := range filters.Months {
			months[i] = strconv.Itoa(m)
		}
		fmt.Fprintf(&b, "months=%s", strings.Join(months, ","))
	}
	return b.String()
}

// scrapeScript returns a JS expression chromedp evaluates in-page: it
// walks rowSelector and returns an array of flat string maps, one per
// matched row, reading from data-* attributes the timetable exposes.
func scrapeScript(rowSelector string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(function(el) {
		return {
			id: el.getAttribute('data-slot-id') || el.getAttribute('data-id') || '',
			date: el.getAttribute('data-date') || '',
			time: el.getAttribute('data-time') || '',
			city: el.getAttribute('data-city') || '',
			examType: el.getAttribute('data-exam-type') || '',
			location: el.getAttribute('data-location') || '',
			status: el.getAttribute('data-status') || '',
			price: el.getAttribute('data-price') || '',
			url: el.getAttribute('data-register-url') || ''
		};
	});`, rowSelector)
}

func toRawRows(found []map[string]string) []rawRow {
	rows := make([]rawRow, 0, len(found))
	for _, m := range found {
		rows = append(rows, rawRow{
			ID: m["id"], Date: m["date"], Time: m["time"], City: m["city"],
			ExamType: m["examType"], Location: m["location"], Status: m["status"],
			Price: m["price"], URL: m["url"],
		})
	}
	return rows
}

func normalizeRow(r rawRow) (domain.Appointment, bool) {
	if r.ID == "" || r.Date == "" || r.Time == "" {
		return domain.Appointment{}, false
	}
	price, _ := strconv.Atoi(r.Price)
	return domain.Appointment{
		ID:              r.ID,
		Date:            r.Date,
		Time:            r.Time,
		City:            r.City,
		ExamType:        r.ExamType,
		Location:        r.Location,
		Status:          normalizeStatus(r.Status),
		PriceMinorUnits: price,
		RegistrationURL: r.URL,
	}, true
}

// normalizeStatus maps the free-text status markers the page uses onto
// the closed domain.Status enumeration. Anything unrecognized becomes
// StatusUnknown rather than being guessed at (spec.md §4.1).
func normalizeStatus(raw string) domain.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "available", "open", "bookable":
		return domain.StatusAvailable
	case "filled", "full", "closed":
		return domain.StatusFilled
	case "pending", "processing":
		return domain.StatusPending
	case "not-registerable", "not_registerable", "unavailable":
		return domain.StatusNotRegistrable
	default:
		return domain.StatusUnknown
	}
}

func classifyChromeError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "net::ERR"):
		return monerr.New(monerr.CategoryNetwork, component, "fetch", err)
	default:
		return monerr.New(monerr.CategoryParse, component, "fetch", err)
	}
}
