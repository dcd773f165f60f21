package tracker

import (
	"time"

	"github.com/ielts-monitor/monitor/internal/domain"
)

// CheckHistoryEntry is one persisted entry in check-history.json: a
// summary of a single Process call (spec.md §3/§6's check-history
// persisted family).
type CheckHistoryEntry struct {
	Timestamp        time.Time         `json:"timestamp"`
	Type             domain.ResultType `json:"type"`
	AppointmentCount int               `json:"appointmentCount"`
	AvailableCount   int               `json:"availableCount"`
	FilledCount      int               `json:"filledCount"`
}
