package webfetcher

import (
	"errors"
	"testing"

	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/inspect"
	"github.com/ielts-monitor/monitor/internal/monerr"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]domain.Status{
		"available":       domain.StatusAvailable,
		" Open ":          domain.StatusAvailable,
		"BOOKABLE":        domain.StatusAvailable,
		"filled":          domain.StatusFilled,
		"full":            domain.StatusFilled,
		"pending":         domain.StatusPending,
		"not-registerable": domain.StatusNotRegistrable,
		"garbage":         domain.StatusUnknown,
		"":                domain.StatusUnknown,
	}
	for raw, want := range cases {
		if got := normalizeStatus(raw); got != want {
			t.Errorf("normalizeStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNormalizeRow_DropsMissingFields(t *testing.T) {
	_, ok := normalizeRow(rawRow{ID: "", Date: "2026-08-01", Time: "09:00"})
	if ok {
		t.Error("normalizeRow() ok = true for missing id, want false")
	}
}

func TestNormalizeRow_ParsesPrice(t *testing.T) {
	a, ok := normalizeRow(rawRow{ID: "1", Date: "2026-08-01", Time: "09:00", Price: "1200000", Status: "available"})
	if !ok {
		t.Fatal("normalizeRow() ok = false, want true")
	}
	if a.PriceMinorUnits != 1200000 {
		t.Errorf("PriceMinorUnits = %d, want 1200000", a.PriceMinorUnits)
	}
	if a.Status != domain.StatusAvailable {
		t.Errorf("Status = %s, want %s", a.Status, domain.StatusAvailable)
	}
}

func TestNormalizeRow_NonNumericPriceDefaultsZero(t *testing.T) {
	a, ok := normalizeRow(rawRow{ID: "1", Date: "2026-08-01", Time: "09:00", Price: "call for price"})
	if !ok {
		t.Fatal("normalizeRow() ok = false, want true")
	}
	if a.PriceMinorUnits != 0 {
		t.Errorf("PriceMinorUnits = %d, want 0 for unparsable price", a.PriceMinorUnits)
	}
}

func TestToRawRows(t *testing.T) {
	found := []map[string]string{
		{"id": "1", "date": "2026-08-01", "time": "09:00"},
	}
	rows := toRawRows(found)
	if len(rows) != 1 || rows[0].ID != "1" {
		t.Errorf("toRawRows() = %+v, want one row with id 1", rows)
	}
}

func TestRequestURL_IncludesAllFilters(t *testing.T) {
	f := New("https://example.test/timetable", 0, nil)
	url := f.requestURL(domain.Filters{
		Cities:     []string{"Tehran", "Isfahan"},
		ExamModels: []string{"IELTS"},
		Months:     []int{8, 9},
	})

	want := "https://example.test/timetable?cities=Tehran,Isfahan&models=IELTS&months=8,9"
	if url != want {
		t.Errorf("requestURL() = %q, want %q", url, want)
	}
}

func TestClassifyChromeError_Network(t *testing.T) {
	err := classifyChromeError(errors.New("net::ERR_CONNECTION_RESET"))
	if monerr.CategoryOf(err) != monerr.CategoryNetwork {
		t.Errorf("CategoryOf() = %s, want %s", monerr.CategoryOf(err), monerr.CategoryNetwork)
	}
}

func TestClassifyChromeError_DefaultsToParse(t *testing.T) {
	err := classifyChromeError(errors.New("unexpected token in evaluate result"))
	if monerr.CategoryOf(err) != monerr.CategoryParse {
		t.Errorf("CategoryOf() = %s, want %s", monerr.CategoryOf(err), monerr.CategoryParse)
	}
}

func TestDiagnostics_ReflectsMostRecentSetDiagnostics(t *testing.T) {
	f := New("https://example.test", 0, nil)
	if got := f.Diagnostics(); len(got) != 0 {
		t.Fatalf("Diagnostics() = %+v before any Fetch, want empty", got)
	}

	f.setDiagnostics([]inspect.Record{{Selector: "table-row-v2", Outcome: "no-match"}})
	got := f.Diagnostics()
	if len(got) != 1 || got[0].Selector != "table-row-v2" {
		t.Errorf("Diagnostics() = %+v, want one table-row-v2 record", got)
	}
}
