package controller

import (
	"context"
	"testing"
	"time"

	"github.com/ielts-monitor/monitor/internal/clock"
	"github.com/ielts-monitor/monitor/internal/dispatcher"
	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/events"
	"github.com/ielts-monitor/monitor/internal/obslog"
	"github.com/ielts-monitor/monitor/internal/scheduler"
	"github.com/ielts-monitor/monitor/internal/tracker"
)

type nopFetcher struct{}

func (nopFetcher) Name() string { return "nop" }
func (nopFetcher) Fetch(ctx context.Context, filters domain.Filters) (domain.CheckResult, error) {
	return domain.NewCheckResult(nil, "https://example.test", time.Now()), nil
}

type nopTracker struct{}

func (nopTracker) Process(result domain.CheckResult) tracker.Delta            { return tracker.Delta{} }
func (nopTracker) Notifiable(slots []domain.Appointment) []domain.Appointment { return nil }
func (nopTracker) MarkNotified(slots []domain.Appointment)                   {}

type nopSender struct{}

func (nopSender) Send(ctx context.Context, slots []domain.Appointment, spec dispatcher.ChannelSpec) dispatcher.DeliveryReport {
	return dispatcher.DeliveryReport{DeliveryStatus: dispatcher.StatusSuccess}
}

type countingFlusher struct{ count int }

func (f *countingFlusher) Flush() { f.count++ }

func testConfig() domain.MonitorConfig {
	return domain.MonitorConfig{
		Cities:        []string{"Tehran"},
		ExamModels:    []string{"IELTS"},
		Months:        []int{8},
		CheckInterval:        domain.MinCheckInterval,
		BaseURL:              "https://example.test",
		NotificationSettings: domain.NotificationSettings{LogFile: true},
	}
}

func newTestController(t *testing.T, flushers ...Flusher) *Controller {
	t.Helper()
	sched := scheduler.New(nopFetcher{}, nopTracker{}, nopSender{}, events.New(), clock.New(), obslog.Nop{}, testConfig())
	return New(sched, testConfig(), events.New(), obslog.Nop{}, flushers...)
}

func TestController_StartTransitionsToRunning(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if c.State() != StateRunning {
		t.Errorf("State() = %s, want %s", c.State(), StateRunning)
	}
	c.Stop()
}

func TestController_StopFlushesAndReturnsToStopped(t *testing.T) {
	flusher := &countingFlusher{}
	c := newTestController(t, flusher)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if c.State() != StateStopped {
		t.Errorf("State() = %s, want %s", c.State(), StateStopped)
	}
	if flusher.count != 1 {
		t.Errorf("flush count = %d, want 1", flusher.count)
	}
}

func TestController_PauseThenResume(t *testing.T) {
	flusher := &countingFlusher{}
	c := newTestController(t, flusher)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if c.State() != StatePaused {
		t.Errorf("State() = %s, want %s", c.State(), StatePaused)
	}
	if flusher.count != 0 {
		t.Errorf("flush count = %d, want 0 (pause must not flush)", flusher.count)
	}

	if err := c.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	if c.State() != StateRunning {
		t.Errorf("State() = %s, want %s", c.State(), StateRunning)
	}
	c.Stop()
}

func TestController_CannotStartFromRunning(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := c.Start(context.Background()); err == nil {
		t.Error("Start() from RUNNING = nil error, want error")
	}
	c.Stop()
}

func TestController_CannotPauseFromStopped(t *testing.T) {
	c := newTestController(t)
	if err := c.Pause(); err == nil {
		t.Error("Pause() from STOPPED = nil error, want error")
	}
}

func TestController_CannotResumeFromRunning(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := c.Resume(context.Background()); err == nil {
		t.Error("Resume() from RUNNING = nil error, want error")
	}
	c.Stop()
}

func TestController_StartRejectsInvalidConfig(t *testing.T) {
	sched := scheduler.New(nopFetcher{}, nopTracker{}, nopSender{}, events.New(), clock.New(), obslog.Nop{}, domain.MonitorConfig{})
	c := New(sched, domain.MonitorConfig{}, events.New(), obslog.Nop{})

	if err := c.Start(context.Background()); err == nil {
		t.Error("Start() with invalid config = nil error, want error")
	}
	if c.State() != StateError {
		t.Errorf("State() = %s, want %s", c.State(), StateError)
	}
}

func TestController_SessionReflectsCounters(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop()

	session := c.Session()
	if session.SessionID == "" {
		t.Error("Session().SessionID is empty, want a generated id")
	}
	if session.StartTime.IsZero() {
		t.Error("Session().StartTime is zero, want set at Start()")
	}
}

func TestController_ReconfigureAppliesToRunningScheduler(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop()

	newCfg := testConfig()
	newCfg.CheckInterval = time.Hour
	if err := c.Reconfigure(newCfg); err != nil {
		t.Fatalf("Reconfigure() error: %v", err)
	}

	if c.State() != StateRunning {
		t.Errorf("State() = %s after Reconfigure, want %s (state preserved)", c.State(), StateRunning)
	}
	if c.cfg.CheckInterval != time.Hour {
		t.Errorf("cfg.CheckInterval = %v, want %v", c.cfg.CheckInterval, time.Hour)
	}
}

func TestController_ReconfigureRejectsInvalidConfig(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop()

	if err := c.Reconfigure(domain.MonitorConfig{}); err == nil {
		t.Error("Reconfigure() with an invalid config = nil error, want error")
	}
	if c.State() != StateRunning {
		t.Errorf("State() = %s after a rejected Reconfigure, want %s unchanged", c.State(), StateRunning)
	}
}

func TestController_StopIsIdempotent(t *testing.T) {
	c := newTestController(t)
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() from STOPPED error = %v, want nil", err)
	}
	if c.State() != StateStopped {
		t.Errorf("State() = %s, want %s", c.State(), StateStopped)
	}
}
