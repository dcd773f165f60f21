package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ielts-monitor/monitor/internal/clock"
	"github.com/ielts-monitor/monitor/internal/domain"
)

// NotificationWriter appends one line to the notifications log. Distinct
// from obslog.Logger because the logFile channel's output is a
// first-class notification artifact (spec.md §4.7), not a diagnostic
// event stream; internal/statuslog implements it via a dedicated
// lumberjack-backed zap core.
type NotificationWriter interface {
	WriteNotificationLine(line []byte) error
}

const (
	logFileRetries = 2
	logFileBackoff = 100 * time.Millisecond
)

// LogFileChannel appends a structured JSON line describing the delivered
// slots to notifications.log. Per spec.md §4.3 this is treated as
// critical-path: it retries twice with a 100ms backoff before reporting
// failure.
type LogFileChannel struct {
	writer NotificationWriter
	clock  clock.Clock
}

// NewLogFileChannel builds a LogFileChannel writing through w.
func NewLogFileChannel(w NotificationWriter, clk clock.Clock) *LogFileChannel {
	return &LogFileChannel{writer: w, clock: clk}
}

func (c *LogFileChannel) Name() string { return "logFile" }

type logFileEntry struct {
	Timestamp    time.Time            `json:"timestamp"`
	Appointments []domain.Appointment `json:"appointments"`
}

func (c *LogFileChannel) Deliver(ctx context.Context, slots []domain.Appointment) error {
	entry := logFileEntry{Timestamp: c.clock.Now(), Appointments: slots}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling notification line: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= logFileRetries; attempt++ {
		if attempt > 0 {
			if err := c.clock.Sleep(ctx, logFileBackoff); err != nil {
				return err
			}
		}
		if lastErr = c.writer.WriteNotificationLine(line); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("writing notification line after %d attempts: %w", logFileRetries+1, lastErr)
}
