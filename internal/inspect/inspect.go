// Package inspect implements spec.md §5's supplemented inspection-data
// export: the parse failures and low-confidence scrapes the Fetcher
// surfaces are a first-class diagnostic artifact, exportable as JSON,
// text, or CSV.
package inspect

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ielts-monitor/monitor/internal/obslog"
	"github.com/ielts-monitor/monitor/internal/store"
)

// Record is one inspection entry: one selector-family attempt or skipped
// row from the Fetcher's parse cascade.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	Selector   string    `json:"selector"`
	Confidence float64   `json:"confidence"`
	Outcome    string    `json:"outcome"` // "matched" | "parse-skip" | "no-match" | "error"
	Detail     string    `json:"detail"`
}

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatCSV  Format = "csv"
)

// Export writes records to w in the given format.
func Export(w io.Writer, records []Record, format Format) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatText:
		for _, r := range records {
			fmt.Fprintf(w, "[%s] %s confidence=%.2f outcome=%s %s\n",
				r.Timestamp.Format(time.RFC3339), r.Selector, r.Confidence, r.Outcome, r.Detail)
		}
		return nil
	case FormatCSV:
		cw := csv.NewWriter(w)
		defer cw.Flush()
		if err := cw.Write([]string{"timestamp", "selector", "confidence", "outcome", "detail"}); err != nil {
			return err
		}
		for _, r := range records {
			err := cw.Write([]string{
				r.Timestamp.Format(time.RFC3339),
				r.Selector,
				fmt.Sprintf("%.2f", r.Confidence),
				r.Outcome,
				r.Detail,
			})
			if err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unrecognized export format %q", format)
	}
}

// maxRecords bounds the persisted inspection log so a sustained run of
// selector failures cannot grow inspection-data.json unboundedly.
const maxRecords = 500

// Recorder is the producer side of the inspection-data export: it
// accumulates Records from the Fetcher's parse attempts and persists them
// to path via internal/store, so `inspect --export` reads real data
// instead of an always-empty file.
type Recorder struct {
	mu      sync.Mutex
	path    string
	logger  obslog.Logger
	records []Record
}

// NewRecorder builds a Recorder persisting to path, loading any records
// already on disk (a missing or corrupt file yields an empty log, not a
// fatal error, matching internal/store's load contract).
func NewRecorder(path string, logger obslog.Logger) *Recorder {
	if logger == nil {
		logger = obslog.Nop{}
	}
	r := &Recorder{path: path, logger: logger}
	if loaded, ok, err := store.Load[[]Record](path); err != nil {
		logger.Warn("inspection-load-failed", obslog.Fields{"error": err.Error()})
	} else if ok {
		r.records = loaded
	}
	return r
}

// Record appends rec to the log, trims it to maxRecords, and saves it.
func (r *Recorder) Record(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	if len(r.records) > maxRecords {
		r.records = r.records[len(r.records)-maxRecords:]
	}
	snapshot := append([]Record(nil), r.records...)
	r.mu.Unlock()

	if err := store.Save(r.path, snapshot); err != nil {
		r.logger.Warn("inspection-save-failed", obslog.Fields{"error": err.Error()})
	}
}

// Records returns a copy of the current in-memory log.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}
