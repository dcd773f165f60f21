// Package scheduler implements spec.md §4.4: the single cooperative loop
// that fetches, processes, and dispatches on a configured interval without
// overlap or drift. Grounded directly on the teacher's Monitor.Start/poll
// loop (monitor/monitor.go): a ticker-driven select loop with a
// mutex-guarded live config snapshot and a reconfigure signal, generalized
// from a fixed poll interval to a self-paced "sleep interval-minus-elapsed"
// loop per spec.md's no-drift ordering guarantee.
package scheduler

import (
	"context"
	"time"

	"github.com/ielts-monitor/monitor/internal/clock"
	"github.com/ielts-monitor/monitor/internal/dispatcher"
	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/events"
	"github.com/ielts-monitor/monitor/internal/fetcher"
	"github.com/ielts-monitor/monitor/internal/inspect"
	"github.com/ielts-monitor/monitor/internal/monerr"
	"github.com/ielts-monitor/monitor/internal/obslog"
	"github.com/ielts-monitor/monitor/internal/tracker"
)

const component = "scheduler"

// parseRetryDelay is spec.md §7's "single scheduler retry after a short
// delay" for a Parse-categorized fetch error, before it is treated as a
// repeated failure.
const parseRetryDelay = 5 * time.Second

// Tracker is the subset of *tracker.Tracker the Scheduler depends on.
type Tracker interface {
	Process(result domain.CheckResult) tracker.Delta
	Notifiable(slots []domain.Appointment) []domain.Appointment
	MarkNotified(slots []domain.Appointment)
}

// Sender is the subset of *dispatcher.Dispatcher the Scheduler depends on.
type Sender interface {
	Send(ctx context.Context, slots []domain.Appointment, spec dispatcher.ChannelSpec) dispatcher.DeliveryReport
}

// SessionCounters accumulates the per-run counters the Controller exposes
// as Session (spec.md §3).
type SessionCounters struct {
	ChecksPerformed   int
	NotificationsSent int
}

// Scheduler drives the fetch/process/dispatch loop. It holds no state
// other than the live config snapshot and its Counters — tracked appointments live in the
// injected Tracker, which is owned by the Controller across Scheduler
// restarts (pause/resume must not lose tracker state).
type Scheduler struct {
	fetcher    fetcher.Fetcher
	tracker    Tracker
	dispatcher Sender
	bus        *events.Bus
	clock      clock.Clock
	logger     obslog.Logger

	reconfigureCh chan domain.MonitorConfig
	cfg           domain.MonitorConfig
	recorder      *inspect.Recorder

	Counters SessionCounters
}

// Option configures optional Scheduler collaborators.
type Option func(*Scheduler)

// WithInspectionRecorder attaches the recorder a repeated fetch failure
// persists its diagnostics to (spec.md §7: "on repeated failure, record
// inspection data"). Without one, repeated failures are only logged.
func WithInspectionRecorder(r *inspect.Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// New builds a Scheduler. cfg is the initial configuration; callers change
// it in-place via Reconfigure.
func New(f fetcher.Fetcher, t Tracker, d Sender, bus *events.Bus, clk clock.Clock, logger obslog.Logger, cfg domain.MonitorConfig, opts ...Option) *Scheduler {
	if logger == nil {
		logger = obslog.Nop{}
	}
	s := &Scheduler{
		fetcher:       f,
		tracker:       t,
		dispatcher:    d,
		bus:           bus,
		clock:         clk,
		logger:        logger,
		reconfigureCh: make(chan domain.MonitorConfig, 1),
		cfg:           cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconfigure swaps in a new config, applied at the start of the next
// iteration (spec.md §4.5: "resume in-place without losing ... state").
func (s *Scheduler) Reconfigure(cfg domain.MonitorConfig) {
	select {
	case s.reconfigureCh <- cfg:
	default:
		// a pending reconfigure not yet applied is replaced
		select {
		case <-s.reconfigureCh:
		default:
		}
		s.reconfigureCh <- cfg
	}
}

// Run drives the loop until ctx is cancelled. It returns ctx.Err() on
// cancellation. Fetches never overlap: the next iteration starts only
// after the current one (fetch + process + dispatch) finishes.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case cfg := <-s.reconfigureCh:
			s.cfg = cfg
		default:
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := s.clock.Now()
		s.runOnce(ctx)
		elapsed := s.clock.Now().Sub(start)

		remaining := s.cfg.CheckInterval - elapsed
		if remaining < 0 {
			remaining = 0
		}

		if err := s.sleepOrReconfigure(ctx, remaining); err != nil {
			return err
		}
	}
}

// sleepOrReconfigure waits for remaining to elapse, ctx cancellation, or a
// pending reconfigure — whichever comes first. A reconfigure wakes the
// loop early so interval changes take effect immediately rather than
// waiting out the old interval.
func (s *Scheduler) sleepOrReconfigure(ctx context.Context, remaining time.Duration) error {
	sleepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.clock.Sleep(sleepCtx, remaining) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case cfg := <-s.reconfigureCh:
		s.cfg = cfg
		cancel()
		<-done
		return nil
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
}

// runOnce performs one fetch/process/dispatch cycle (spec.md §4.4 steps
// 2-5). Errors are categorized and swallowed here — the caller always
// proceeds to the sleep step; every fetch error that survives the Parse
// retry is published as an `error` event for the Controller to observe.
func (s *Scheduler) runOnce(ctx context.Context) {
	start := s.clock.Now()
	result, err := s.fetcher.Fetch(ctx, s.cfg.Filters())
	if err != nil && monerr.CategoryOf(err) == monerr.CategoryParse {
		s.logger.Warn("fetch-parse-retry", obslog.Fields{"error": err.Error()})
		if sleepErr := s.clock.Sleep(ctx, parseRetryDelay); sleepErr == nil {
			result, err = s.fetcher.Fetch(ctx, s.cfg.Filters())
		}
	}
	if err != nil {
		s.recordInspectionFailure()
		s.bus.Publish(events.Event{Name: events.Error, Data: err})
		s.logger.Warn("fetch-failed", obslog.Fields{"category": string(monerr.CategoryOf(err)), "error": err.Error()})
		return
	}

	delta := s.tracker.Process(result)
	s.Counters.ChecksPerformed++

	if len(delta.NewAvailable) > 0 {
		s.bus.Publish(events.Event{Name: events.NewAppointments, Data: delta.NewAvailable})
	}
	if len(delta.StatusChanged) > 0 {
		s.bus.Publish(events.Event{Name: events.AppointmentStatusChanged, Data: delta.StatusChanged})
	}

	candidates := s.tracker.Notifiable(delta.NewAvailable)
	if len(candidates) > 0 {
		spec := dispatcher.ChannelSpec{
			Desktop:  s.cfg.NotificationSettings.Desktop,
			Audio:    s.cfg.NotificationSettings.Audio,
			LogFile:  s.cfg.NotificationSettings.LogFile,
			Telegram: s.cfg.NotificationSettings.Telegram,
		}
		report := s.dispatcher.Send(ctx, candidates, spec)
		if report.DeliveryStatus == dispatcher.StatusSuccess || report.DeliveryStatus == dispatcher.StatusPartial {
			s.tracker.MarkNotified(candidates)
			s.Counters.NotificationsSent += len(candidates)
		}
		s.bus.Publish(events.Event{Name: events.NotificationSent, Data: report})
	}

	s.bus.Publish(events.Event{Name: events.CheckCompleted, Data: CheckCompletedPayload{
		Duration:         s.clock.Now().Sub(start),
		AppointmentCount: result.AppointmentCount,
		AvailableCount:   result.AvailableCount,
	}})
}

// recordInspectionFailure persists the fetcher's selector-family
// diagnostics after a failed fetch (for a Parse error, after its single
// retry has also failed; spec.md §7), when both a
// Recorder is configured and the fetcher implements fetcher.Diagnosable.
func (s *Scheduler) recordInspectionFailure() {
	if s.recorder == nil {
		return
	}
	diagnosable, ok := s.fetcher.(fetcher.Diagnosable)
	if !ok {
		return
	}
	for _, rec := range diagnosable.Diagnostics() {
		s.recorder.Record(rec)
	}
}

// CheckCompletedPayload is the data attached to a CheckCompleted event.
type CheckCompletedPayload struct {
	Duration         time.Duration
	AppointmentCount int
	AvailableCount   int
}
