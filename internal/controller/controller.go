// Package controller implements spec.md §4.5: the start/stop/pause/resume/
// reconfigure state machine that owns the Scheduler's lifecycle and
// coordinates graceful shutdown. Signal handling is grounded on the
// teacher's cmd/server/main.go (sigCh + cancel() + wg.Wait() drain); the
// event bus wiring is grounded on gamification/stats.go's callback
// registration, generalized via internal/events.
package controller

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/events"
	"github.com/ielts-monitor/monitor/internal/monerr"
	"github.com/ielts-monitor/monitor/internal/obslog"
	"github.com/ielts-monitor/monitor/internal/scheduler"
)

// State is one of the Controller's lifecycle states (spec.md §4.5).
type State string

const (
	StateStopped  State = "STOPPED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StatePaused   State = "PAUSED"
	StateStopping State = "STOPPING"
	StateError    State = "ERROR"
)

// gracefulStopTimeout bounds how long Stop waits for the current Scheduler
// iteration to finish before hard-cancelling (spec.md §4.5: "bounded ≤ 30s").
const gracefulStopTimeout = 30 * time.Second

// Flusher is flushed on graceful stop (spec.md §4.5: "flush Store and
// StatusLog"). *tracker.Tracker and *statuslog.StatusLog both implement it.
type Flusher interface {
	Flush()
}

// Controller owns the state machine and the single Scheduler goroutine.
type Controller struct {
	mu    sync.Mutex
	state State

	scheduler *scheduler.Scheduler
	cfg       domain.MonitorConfig
	bus       *events.Bus
	logger    obslog.Logger
	flushers  []Flusher

	cancel      context.CancelFunc
	loopDone    chan struct{}
	sessionID   string
	sessionErrs []domain.SessionError
	startedAt   time.Time
}

// New builds a Controller in the STOPPED state.
func New(sched *scheduler.Scheduler, cfg domain.MonitorConfig, bus *events.Bus, logger obslog.Logger, flushers ...Flusher) *Controller {
	if logger == nil {
		logger = obslog.Nop{}
	}
	c := &Controller{
		state:     StateStopped,
		scheduler: sched,
		cfg:       cfg,
		bus:       bus,
		logger:    logger,
		flushers:  flushers,
	}
	bus.Subscribe(events.Error, c.recordSessionError)
	return c
}

// recordSessionError appends a categorized entry to the current session's
// error log (spec.md §3: Session.errors), bounded to the most recent 100
// entries so a persistently failing fetch cannot grow this unboundedly.
func (c *Controller) recordSessionError(e events.Event) {
	err, ok := e.Data.(error)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionErrs = append(c.sessionErrs, domain.SessionError{
		Timestamp: time.Now(),
		Category:  string(monerr.CategoryOf(err)),
		Message:   err.Error(),
	})
	if len(c.sessionErrs) > 100 {
		c.sessionErrs = c.sessionErrs[len(c.sessionErrs)-100:]
	}
}

// Session returns a snapshot of the current/most recent run, combining the
// Scheduler's counters with the Controller's lifecycle bookkeeping
// (spec.md §3's Session type).
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	sessionID := c.sessionID
	startedAt := c.startedAt
	errs := make([]domain.SessionError, len(c.sessionErrs))
	copy(errs, c.sessionErrs)
	cfg := c.cfg
	c.mu.Unlock()

	counters := c.scheduler.Counters
	return domain.Session{
		SessionID:         sessionID,
		StartTime:         startedAt,
		ChecksPerformed:   counters.ChecksPerformed,
		NotificationsSent: counters.NotificationsSent,
		Errors:            errs,
		Configuration:     cfg,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start transitions STOPPED/ERROR -> STARTING -> RUNNING and launches the
// Scheduler loop in the background.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateStopped && c.state != StateError {
		c.mu.Unlock()
		return fmt.Errorf("controller: cannot start from state %s", c.state)
	}
	c.state = StateStarting
	c.mu.Unlock()

	if errs := c.cfg.Validate(); len(errs) > 0 {
		c.setState(StateError)
		return fmt.Errorf("controller: invalid config: %w", errs)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.loopDone = make(chan struct{})
	c.sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	c.sessionErrs = nil
	c.startedAt = time.Now()
	c.scheduler.Counters = scheduler.SessionCounters{}
	loopDone := c.loopDone
	c.mu.Unlock()

	go func() {
		defer close(loopDone)
		err := c.scheduler.Run(runCtx)
		if err != nil && err != context.Canceled {
			c.bus.Publish(events.Event{Name: events.Error, Data: err})
			c.setState(StateError)
			return
		}
	}()

	c.setState(StateRunning)
	c.bus.Publish(events.Event{Name: events.StatusChanged, Data: StateRunning})
	return nil
}

// Stop cancels the Scheduler, waits for its current iteration to finish
// (bounded by gracefulStopTimeout, then hard-cancels — which the context
// cancellation already triggers immediately, so the bound here only
// governs how long Stop itself waits before giving up on a clean join),
// flushes every registered Flusher, and transitions to STOPPED.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	cancel := c.cancel
	loopDone := c.loopDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if loopDone != nil {
		select {
		case <-loopDone:
		case <-time.After(gracefulStopTimeout):
			c.logger.Warn("graceful-stop-timeout", obslog.Fields{"timeout": gracefulStopTimeout.String()})
		}
	}

	for _, f := range c.flushers {
		f.Flush()
	}

	c.setState(StateStopped)
	c.bus.Publish(events.Event{Name: events.StatusChanged, Data: StateStopped})
	return nil
}

// Pause cancels the Scheduler without flushing, transitioning RUNNING ->
// PAUSED. Tracker/notified-key state is untouched since it lives in the
// injected Tracker, not the Scheduler.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return fmt.Errorf("controller: cannot pause from state %s", c.state)
	}
	cancel := c.cancel
	loopDone := c.loopDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if loopDone != nil {
		<-loopDone
	}

	c.setState(StatePaused)
	c.bus.Publish(events.Event{Name: events.StatusChanged, Data: StatePaused})
	return nil
}

// Resume restarts the Scheduler loop from PAUSED, preserving Tracker state.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return fmt.Errorf("controller: cannot resume from state %s", c.state)
	}
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.loopDone = loopDone
	c.mu.Unlock()

	go func() {
		defer close(loopDone)
		if err := c.scheduler.Run(runCtx); err != nil && err != context.Canceled {
			c.bus.Publish(events.Event{Name: events.Error, Data: err})
			c.setState(StateError)
		}
	}()

	c.setState(StateRunning)
	c.bus.Publish(events.Event{Name: events.StatusChanged, Data: StateRunning})
	return nil
}

// Reconfigure validates newConfig and, if the Controller is RUNNING or
// PAUSED, applies it to the live Scheduler in place (spec.md §4.5: "without
// losing the notified-key set or tracker state").
func (c *Controller) Reconfigure(newConfig domain.MonitorConfig) error {
	if errs := newConfig.Validate(); len(errs) > 0 {
		return fmt.Errorf("controller: invalid config: %w", errs)
	}

	c.mu.Lock()
	c.cfg = newConfig
	state := c.state
	c.mu.Unlock()

	if state == StateRunning || state == StatePaused {
		c.scheduler.Reconfigure(newConfig)
	}
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RunUntilSignal starts the Controller and blocks until SIGINT/SIGTERM
// (a second signal forces immediate exit, per spec.md §4.5).
func (c *Controller) RunUntilSignal(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	<-sigCh
	stopDone := make(chan error, 1)
	go func() { stopDone <- c.Stop() }()

	select {
	case err := <-stopDone:
		return err
	case <-sigCh:
		os.Exit(1)
		return nil
	}
}
