// Package dispatcher implements spec.md §4.3: fan-out delivery of an
// available-slots notification across the desktop, audio, log-file, and
// Telegram channels, with per-channel independent success/failure and a
// combined delivery verdict.
//
// The fan-out-and-join shape is grounded on the teacher's websocket
// broadcaster (ws/broadcast.go), generalized from "push to N connected
// clients" to "invoke N channel backends and join their outcomes."
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/ielts-monitor/monitor/internal/clock"
	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/obslog"
)

// DeliveryStatus is the overall verdict for one Send call.
type DeliveryStatus string

const (
	StatusSuccess DeliveryStatus = "success"
	StatusPartial DeliveryStatus = "partial"
	StatusFailed  DeliveryStatus = "failed"
)

// ChannelSpec selects which channels a Send call should attempt. At least
// one must be true; Dispatcher does not validate that invariant — the
// Controller does, against MonitorConfig.
type ChannelSpec struct {
	Desktop  bool
	Audio    bool
	LogFile  bool
	Telegram bool
}

// DeliveryReport is the outcome of one Send call (spec.md §4.3).
type DeliveryReport struct {
	Timestamp        time.Time
	AppointmentCount int
	Channels         []string
	DeliveryStatus   DeliveryStatus
	PerChannelErrors map[string]string
}

// Channel is one notification backend. Name identifies it in
// DeliveryReport.Channels/PerChannelErrors.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, slots []domain.Appointment) error
}

// Dispatcher owns the configured set of channel backends and implements
// the send() contract of spec.md §4.3.
type Dispatcher struct {
	channels map[string]Channel
	clock    clock.Clock
	logger   obslog.Logger
}

// New builds a Dispatcher from the given channel backends, keyed by their
// Name(). Channels not present in a given ChannelSpec are simply skipped
// at Send time rather than at construction.
func New(clk clock.Clock, logger obslog.Logger, channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		channels: make(map[string]Channel, len(channels)),
		clock:    clk,
		logger:   logger,
	}
	if d.logger == nil {
		d.logger = obslog.Nop{}
	}
	for _, c := range channels {
		d.channels[c.Name()] = c
	}
	return d
}

// Send delivers a notification describing slots through every channel
// enabled in spec. It enforces the defence-in-depth precondition from
// spec.md §4.3: slots with status != available are filtered out first,
// and an empty result after filtering is reported failed without
// attempting any channel.
func (d *Dispatcher) Send(ctx context.Context, slots []domain.Appointment, spec ChannelSpec) DeliveryReport {
	now := d.clock.Now()

	available := make([]domain.Appointment, 0, len(slots))
	for _, s := range slots {
		if s.Status == domain.StatusAvailable {
			available = append(available, s)
		}
	}

	report := DeliveryReport{
		Timestamp:        now,
		AppointmentCount: len(available),
		PerChannelErrors: make(map[string]string),
	}

	if len(available) == 0 {
		report.DeliveryStatus = StatusFailed
		report.PerChannelErrors["_"] = "no-available-after-filter"
		return report
	}

	type outcome struct {
		name string
		err  error
	}

	var enabled []Channel
	for name, want := range map[string]bool{
		"desktop":  spec.Desktop,
		"audio":    spec.Audio,
		"logFile":  spec.LogFile,
		"telegram": spec.Telegram,
	} {
		if !want {
			continue
		}
		ch, ok := d.channels[name]
		if !ok {
			report.PerChannelErrors[name] = "channel not configured"
			continue
		}
		enabled = append(enabled, ch)
	}

	results := make(chan outcome, len(enabled))
	var wg sync.WaitGroup
	for _, ch := range enabled {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			err := ch.Deliver(ctx, available)
			results <- outcome{name: ch.Name(), err: err}
		}(ch)
	}
	wg.Wait()
	close(results)

	successCount := 0
	for r := range results {
		report.Channels = append(report.Channels, r.name)
		if r.err == nil {
			successCount++
			continue
		}
		report.PerChannelErrors[r.name] = r.err.Error()
		d.logger.Warn("channel-delivery-failed", obslog.Fields{"channel": r.name, "error": r.err.Error()})
	}

	attempted := len(enabled)
	switch {
	case attempted == 0:
		report.DeliveryStatus = StatusFailed
	case successCount == attempted:
		report.DeliveryStatus = StatusSuccess
	case successCount == 0:
		report.DeliveryStatus = StatusFailed
	default:
		report.DeliveryStatus = StatusPartial
	}

	return report
}
