package inspect

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ielts-monitor/monitor/internal/obslog"
)

func sampleRecord() Record {
	return Record{
		Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Selector:   "table-row-v2",
		Confidence: 1.0,
		Outcome:    "no-match",
		Detail:     "0 rows",
	}
}

func TestExport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, []Record{sampleRecord()}, FormatJSON); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if !strings.Contains(buf.String(), "table-row-v2") {
		t.Errorf("Export() JSON = %q, want it to contain the selector name", buf.String())
	}
}

func TestExport_CSVHeaderAndRow(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, []Record{sampleRecord()}, FormatCSV); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Export() CSV = %d lines, want 2 (header + one record)", len(lines))
	}
	if lines[0] != "timestamp,selector,confidence,outcome,detail" {
		t.Errorf("Export() CSV header = %q", lines[0])
	}
}

func TestExport_UnrecognizedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, nil, Format("xml")); err == nil {
		t.Error("Export() error = nil for an unrecognized format, want an error")
	}
}

func TestRecorder_RecordPersistsAndCaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspection-data.json")
	r := NewRecorder(path, obslog.Nop{})

	for i := 0; i < maxRecords+10; i++ {
		r.Record(sampleRecord())
	}

	if got := len(r.Records()); got != maxRecords {
		t.Errorf("len(Records()) = %d, want %d (capped)", got, maxRecords)
	}

	reloaded := NewRecorder(path, obslog.Nop{})
	if got := len(reloaded.Records()); got != maxRecords {
		t.Errorf("reloaded len(Records()) = %d, want %d", got, maxRecords)
	}
}

func TestRecorder_EmptyOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	r := NewRecorder(path, obslog.Nop{})
	if got := r.Records(); len(got) != 0 {
		t.Errorf("Records() = %+v for a missing file, want empty", got)
	}
}
