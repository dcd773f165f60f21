package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ielts-monitor/monitor/internal/clock"
	"github.com/ielts-monitor/monitor/internal/dispatcher"
	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/events"
	"github.com/ielts-monitor/monitor/internal/inspect"
	"github.com/ielts-monitor/monitor/internal/monerr"
	"github.com/ielts-monitor/monitor/internal/obslog"
	"github.com/ielts-monitor/monitor/internal/tracker"
)

var errBoom = errors.New("boom")

type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	result   domain.CheckResult
	err      error
	onFetch  func()
}

func (f *fakeFetcher) Name() string { return "fake" }
func (f *fakeFetcher) Fetch(ctx context.Context, filters domain.Filters) (domain.CheckResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.result, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDiagnosableFetcher additionally implements fetcher.Diagnosable, so
// the retry-then-record path can be exercised.
type fakeDiagnosableFetcher struct {
	fakeFetcher
	diagnostics []inspect.Record
}

func (f *fakeDiagnosableFetcher) Diagnostics() []inspect.Record { return f.diagnostics }

type fakeTracker struct{}

func (fakeTracker) Process(result domain.CheckResult) tracker.Delta            { return tracker.Delta{} }
func (fakeTracker) Notifiable(slots []domain.Appointment) []domain.Appointment { return nil }
func (fakeTracker) MarkNotified(slots []domain.Appointment)                   {}

type fakeSender struct{}

func (fakeSender) Send(ctx context.Context, slots []domain.Appointment, spec dispatcher.ChannelSpec) dispatcher.DeliveryReport {
	return dispatcher.DeliveryReport{DeliveryStatus: dispatcher.StatusSuccess}
}

func testConfig(interval time.Duration) domain.MonitorConfig {
	return domain.MonitorConfig{
		Cities:        []string{"Tehran"},
		ExamModels:    []string{"IELTS"},
		Months:        []int{8},
		CheckInterval: interval,
		BaseURL:       "https://example.test",
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	fc := clock.NewFake(time.Now())
	fetcher := &fakeFetcher{}
	s := New(fetcher, fakeTracker{}, fakeSender{}, events.New(), fc, obslog.Nop{}, testConfig(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// wait until at least one fetch has happened, then cancel.
	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancel")
	}
}

func TestRun_NoOverlap(t *testing.T) {
	fc := clock.NewFake(time.Now())
	var inFlight int
	var mu sync.Mutex
	fetcher := &fakeFetcher{onFetch: func() {
		mu.Lock()
		inFlight++
		cur := inFlight
		mu.Unlock()
		if cur > 1 {
			t.Errorf("concurrent fetch detected: inFlight = %d", cur)
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}}
	s := New(fetcher, fakeTracker{}, fakeSender{}, events.New(), fc, obslog.Nop{}, testConfig(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(200 * time.Millisecond)
	for fetcher.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if fetcher.callCount() < 2 {
		t.Fatalf("callCount = %d, want at least 2 iterations to have run", fetcher.callCount())
	}
}

func TestReconfigure_WakesSleepEarly(t *testing.T) {
	fc := clock.NewFake(time.Now())
	fetcher := &fakeFetcher{}
	s := New(fetcher, fakeTracker{}, fakeSender{}, events.New(), fc, obslog.Nop{}, testConfig(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.sleepOrReconfigure(ctx, time.Hour) }()

	// give the goroutine a moment to enter Sleep, then reconfigure.
	time.Sleep(20 * time.Millisecond)
	s.Reconfigure(testConfig(time.Minute))

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("sleepOrReconfigure() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sleepOrReconfigure did not wake on Reconfigure")
	}

	if s.cfg.CheckInterval != time.Minute {
		t.Errorf("cfg.CheckInterval = %v, want %v after reconfigure", s.cfg.CheckInterval, time.Minute)
	}
}

func TestRunOnce_PublishesCheckCompleted(t *testing.T) {
	fc := clock.NewFake(time.Now())
	fetcher := &fakeFetcher{result: domain.NewCheckResult(nil, "https://example.test", fc.Now())}
	bus := events.New()

	var gotEvent bool
	bus.Subscribe(events.CheckCompleted, func(e events.Event) { gotEvent = true })

	s := New(fetcher, fakeTracker{}, fakeSender{}, bus, fc, obslog.Nop{}, testConfig(time.Minute))
	s.runOnce(context.Background())

	if !gotEvent {
		t.Error("runOnce() did not publish CheckCompleted")
	}
}

func TestRunOnce_FetchErrorPublishesError(t *testing.T) {
	fc := clock.NewFake(time.Now())
	fetcher := &fakeFetcher{err: errBoom}
	bus := events.New()

	var gotEvent bool
	bus.Subscribe(events.Error, func(e events.Event) { gotEvent = true })

	s := New(fetcher, fakeTracker{}, fakeSender{}, bus, fc, obslog.Nop{}, testConfig(time.Minute))
	s.runOnce(context.Background())

	if !gotEvent {
		t.Error("runOnce() did not publish Error event on fetch failure")
	}
}

func TestRunOnce_ParseErrorRetriesOnceThenRecordsInspectionData(t *testing.T) {
	fc := clock.NewFake(time.Now())
	parseErr := monerr.New(monerr.CategoryParse, "test", "fetch", errors.New("no selector family matched"))
	fetcher := &fakeDiagnosableFetcher{
		fakeFetcher: fakeFetcher{err: parseErr},
		diagnostics: []inspect.Record{{Selector: "table-row-v2", Outcome: "no-match"}},
	}
	bus := events.New()
	recorder := inspect.NewRecorder(filepath.Join(t.TempDir(), "inspection-data.json"), obslog.Nop{})

	s := New(fetcher, fakeTracker{}, fakeSender{}, bus, fc, obslog.Nop{}, testConfig(time.Minute),
		WithInspectionRecorder(recorder))

	done := make(chan struct{})
	go func() {
		s.runOnce(context.Background())
		close(done)
	}()

	// wait for runOnce to enter the parse-retry sleep, then wake it.
	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	fc.Advance(parseRetryDelay)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runOnce() did not return after parse retry")
	}

	if fetcher.callCount() != 2 {
		t.Errorf("fetcher.callCount() = %d, want 2 (initial fetch + single retry)", fetcher.callCount())
	}
	if got := recorder.Records(); len(got) != 1 {
		t.Fatalf("recorder.Records() = %v, want 1 record persisted on repeated failure", got)
	}
}

func TestRunOnce_NonParseErrorDoesNotRetry(t *testing.T) {
	fc := clock.NewFake(time.Now())
	fetcher := &fakeFetcher{err: errBoom}
	s := New(fetcher, fakeTracker{}, fakeSender{}, events.New(), fc, obslog.Nop{}, testConfig(time.Minute))

	s.runOnce(context.Background())

	if fetcher.callCount() != 1 {
		t.Errorf("fetcher.callCount() = %d, want 1 (no retry for a non-Parse category)", fetcher.callCount())
	}
}
