// Package tracker implements spec.md §4.2: the state machine for slot
// lifecycles and the authoritative "should we notify this?" oracle.
package tracker

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ielts-monitor/monitor/internal/clock"
	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/obslog"
	"github.com/ielts-monitor/monitor/internal/store"
)

const (
	trackingFile     = "appointment-tracking.json"
	notifiedFile     = "notified-appointments.json"
	checkHistoryFile = "check-history.json"
	persistDebounce  = 2 * time.Second

	// maxCheckHistory bounds the persisted check-history log so a long-
	// running session cannot grow check-history.json unboundedly.
	maxCheckHistory = 500
)

// Tracker owns the in-memory appointment map and notified-key set described
// by spec.md §4.2. Only the Scheduler's execution context mutates it
// through Process and MarkNotified; every exported method takes mu, so
// snapshot reads and the debounced Flush may run on other goroutines.
type Tracker struct {
	mu              sync.Mutex // guards tracked/notifiedKeys/checkHistory for snapshot reads (statistics, recentChanges)
	tracked         map[string]*domain.TrackedAppointment
	notifiedKeys    map[domain.NotifiedKey]bool
	checkHistory    []CheckHistoryEntry
	maxTrackingDays int
	clock           clock.Clock
	logger          obslog.Logger

	dataDir      string
	pendingSave  bool
	saveTimer    *time.Timer
	saveTimerMu  sync.Mutex
}

// Option configures a new Tracker.
type Option func(*Tracker)

// WithLogger attaches a structured logger for warnings (duplicate ids,
// parse-skips, persistence failures).
func WithLogger(l obslog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New creates a Tracker persisting to dataDir. maxTrackingDays of 0 uses
// domain.DefaultMaxTrackingDays.
func New(dataDir string, maxTrackingDays int, clk clock.Clock, opts ...Option) *Tracker {
	if maxTrackingDays <= 0 {
		maxTrackingDays = domain.DefaultMaxTrackingDays
	}
	t := &Tracker{
		tracked:         make(map[string]*domain.TrackedAppointment),
		notifiedKeys:    make(map[domain.NotifiedKey]bool),
		maxTrackingDays: maxTrackingDays,
		clock:           clk,
		logger:          obslog.Nop{},
		dataDir:         dataDir,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load restores tracked state and the notified-key set from disk. A
// missing or corrupt file yields an empty initial state with a warning,
// never a fatal error (spec.md §4.6).
func (t *Tracker) Load() {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracking, ok, err := store.Load[persistedTracking](t.trackingPath())
	if err != nil {
		t.logger.Warn("tracker-load-failed", obslog.Fields{"file": trackingFile, "error": err.Error()})
	} else if ok && tracking.Tracked != nil {
		t.tracked = tracking.Tracked
	}

	notified, ok, err := store.Load[persistedNotified](t.notifiedPath())
	if err != nil {
		t.logger.Warn("tracker-load-failed", obslog.Fields{"file": notifiedFile, "error": err.Error()})
	} else if ok && notified.Keys != nil {
		t.notifiedKeys = notified.Keys
	}

	history, ok, err := store.Load[persistedCheckHistory](t.checkHistoryPath())
	if err != nil {
		t.logger.Warn("tracker-load-failed", obslog.Fields{"file": checkHistoryFile, "error": err.Error()})
	} else if ok && history.Entries != nil {
		t.checkHistory = history.Entries
	}
}

func (t *Tracker) trackingPath() string     { return filepath.Join(t.dataDir, trackingFile) }
func (t *Tracker) notifiedPath() string     { return filepath.Join(t.dataDir, notifiedFile) }
func (t *Tracker) checkHistoryPath() string { return filepath.Join(t.dataDir, checkHistoryFile) }

// Process applies one CheckResult to the tracker, implementing the
// algorithm in spec.md §4.2. It is pure with respect to the returned
// Delta; side effects are confined to the internal map and a debounced
// persist.
func (t *Tracker) Process(result domain.CheckResult) Delta {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var delta Delta

	seenThisFetch := make(map[string]bool, len(result.Appointments))

	for _, raw := range result.Appointments {
		if !validSlot(raw) {
			t.logger.Warn("parse-skip", obslog.Fields{"reason": "missing id/date/time"})
			continue
		}
		if !raw.Status.Valid() {
			raw.Status = domain.StatusUnknown
		}

		if seenThisFetch[raw.ID] {
			t.logger.Warn("duplicate-slot-in-fetch", obslog.Fields{"id": raw.ID})
		}
		seenThisFetch[raw.ID] = true

		existing, exists := t.tracked[raw.ID]
		if !exists {
			entry := &domain.TrackedAppointment{
				Appointment: raw,
				FirstSeen:   now,
				LastSeen:    now,
				StatusHistory: []domain.StatusChange{{
					Timestamp: now,
					Previous:  domain.StatusUnknown,
					New:       raw.Status,
					Reason:    "first-seen",
				}},
			}
			t.tracked[raw.ID] = entry
			if raw.Status == domain.StatusAvailable {
				delta.NewAvailable = append(delta.NewAvailable, raw)
			}
			continue
		}

		existing.LastSeen = now
		prevStatus := existing.Appointment.Status
		existing.Appointment = raw
		existing.Appointment.Status = raw.Status

		if prevStatus != raw.Status {
			existing.StatusHistory = append(existing.StatusHistory, domain.StatusChange{
				Timestamp: now,
				Previous:  prevStatus,
				New:       raw.Status,
				Reason:    "status-change",
			})
			if prevStatus != domain.StatusAvailable && raw.Status == domain.StatusAvailable {
				delta.NewAvailable = append(delta.NewAvailable, raw)
			}
			if prevStatus == domain.StatusAvailable && raw.Status != domain.StatusAvailable {
				delete(t.notifiedKeys, raw.Key())
			}
			delta.StatusChanged = append(delta.StatusChanged, raw)
		}
		// else: identical status, possibly updated non-status fields
		// (price, etc.) — already applied above, no history entry.
	}

	// Absolute disappearance: present in tracked, absent from this fetch.
	for id, entry := range t.tracked {
		if seenThisFetch[id] {
			continue
		}
		delta.Removed = append(delta.Removed, entry.Appointment)
		delete(t.tracked, id)
	}

	t.sweepStaleLocked(now)

	delta.AllTracked = t.snapshotAllLocked()

	t.checkHistory = append(t.checkHistory, CheckHistoryEntry{
		Timestamp:        now,
		Type:             result.Type,
		AppointmentCount: result.AppointmentCount,
		AvailableCount:   result.AvailableCount,
		FilledCount:      result.FilledCount,
	})
	if len(t.checkHistory) > maxCheckHistory {
		t.checkHistory = t.checkHistory[len(t.checkHistory)-maxCheckHistory:]
	}

	t.schedulePersist()

	return delta
}

// validSlot reports whether a raw slot has the minimum fields required to
// enter the tracker (spec.md §4.2: "malformed slots... are dropped").
func validSlot(a domain.Appointment) bool {
	return a.ID != "" && a.Date != "" && a.Time != ""
}

// sweepStaleLocked removes entries whose LastSeen predates maxTrackingDays.
// Caller must hold t.mu.
func (t *Tracker) sweepStaleLocked(now time.Time) {
	if t.maxTrackingDays <= 0 {
		return
	}
	cutoff := now.AddDate(0, 0, -t.maxTrackingDays)
	for id, entry := range t.tracked {
		if entry.LastSeen.Before(cutoff) {
			delete(t.tracked, id)
			delete(t.notifiedKeys, domain.NotifiedKey(id))
		}
	}
}

// Notifiable filters slots down to those that are currently available and
// whose id is not already in the notified-key set (spec.md §4.2).
func (t *Tracker) Notifiable(slots []domain.Appointment) []domain.Appointment {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []domain.Appointment
	for _, s := range slots {
		if s.Status != domain.StatusAvailable {
			continue
		}
		if t.notifiedKeys[s.Key()] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// MarkNotified adds each slot's key to the notified-key set and increments
// its counter. Must be called only after the Dispatcher reports success or
// partial success (spec.md §4.2, §4.3).
func (t *Tracker) MarkNotified(slots []domain.Appointment) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range slots {
		t.notifiedKeys[s.Key()] = true
		if entry, ok := t.tracked[s.ID]; ok {
			entry.NotificationsSent++
		}
	}
	t.schedulePersist()
}

// History returns a copy of the status history for id, or nil if unknown.
func (t *Tracker) History(id string) []domain.StatusChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tracked[id]
	if !ok {
		return nil
	}
	out := make([]domain.StatusChange, len(entry.StatusHistory))
	copy(out, entry.StatusHistory)
	return out
}

// RecentChanges returns every status change across all tracked slots within
// the given window, most recent first.
func (t *Tracker) RecentChanges(window time.Duration) []domain.StatusChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-window)
	var out []domain.StatusChange
	for _, entry := range t.tracked {
		for _, change := range entry.StatusHistory {
			if change.Timestamp.After(cutoff) {
				out = append(out, change)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// CheckHistory returns a copy of the persisted per-check summary log,
// most recent last.
func (t *Tracker) CheckHistory() []CheckHistoryEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]CheckHistoryEntry, len(t.checkHistory))
	copy(out, t.checkHistory)
	return out
}

// Statistics is a read-only snapshot of tracker-wide counters.
type Statistics struct {
	TrackedCount   int
	AvailableCount int
	NotifiedCount  int
}

// Statistics returns a snapshot copied under lock (spec.md §5: "Read-only
// views are served by copying into a snapshot before returning").
func (t *Tracker) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Statistics{TrackedCount: len(t.tracked), NotifiedCount: len(t.notifiedKeys)}
	for _, entry := range t.tracked {
		if entry.Appointment.Status == domain.StatusAvailable {
			stats.AvailableCount++
		}
	}
	return stats
}

// snapshotAllLocked returns a copy of every tracked appointment. Caller
// must hold t.mu.
func (t *Tracker) snapshotAllLocked() []domain.Appointment {
	out := make([]domain.Appointment, 0, len(t.tracked))
	for _, entry := range t.tracked {
		out = append(out, entry.Appointment)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// schedulePersist arms a debounced save: at most one Store write per
// persistDebounce window (spec.md §4.2 step 4, §9). Caller must hold t.mu.
func (t *Tracker) schedulePersist() {
	t.saveTimerMu.Lock()
	defer t.saveTimerMu.Unlock()

	t.pendingSave = true
	if t.saveTimer != nil {
		return
	}
	t.saveTimer = time.AfterFunc(persistDebounce, func() {
		t.saveTimerMu.Lock()
		t.saveTimer = nil
		t.saveTimerMu.Unlock()
		t.Flush()
	})
}

// Flush performs a synchronous save of all three state families, bypassing
// the debounce window. Called on graceful shutdown (spec.md §4.5) and by
// the debounce timer itself. The maps are deep-copied under t.mu before
// marshaling so a concurrent Process/MarkNotified call can never race
// with the save's json.Marshal over the live map/slice.
func (t *Tracker) Flush() {
	t.mu.Lock()
	trackedCopy := make(map[string]*domain.TrackedAppointment, len(t.tracked))
	for id, entry := range t.tracked {
		cp := *entry
		cp.StatusHistory = append([]domain.StatusChange(nil), entry.StatusHistory...)
		trackedCopy[id] = &cp
	}
	notifiedCopy := make(map[domain.NotifiedKey]bool, len(t.notifiedKeys))
	for k, v := range t.notifiedKeys {
		notifiedCopy[k] = v
	}
	historyCopy := append([]CheckHistoryEntry(nil), t.checkHistory...)
	t.mu.Unlock()

	t.saveTimerMu.Lock()
	t.pendingSave = false
	t.saveTimerMu.Unlock()

	if err := store.Save(t.trackingPath(), persistedTracking{Tracked: trackedCopy}); err != nil {
		t.logger.Warn("tracker-save-failed", obslog.Fields{"file": trackingFile, "error": err.Error()})
	}
	if err := store.Save(t.notifiedPath(), persistedNotified{Keys: notifiedCopy}); err != nil {
		t.logger.Warn("tracker-save-failed", obslog.Fields{"file": notifiedFile, "error": err.Error()})
	}
	if err := store.Save(t.checkHistoryPath(), persistedCheckHistory{Entries: historyCopy}); err != nil {
		t.logger.Warn("tracker-save-failed", obslog.Fields{"file": checkHistoryFile, "error": err.Error()})
	}
}
