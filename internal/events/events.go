// Package events implements the named publisher-subscriber bus described
// in spec.md's REDESIGN FLAGS: a fixed event set, subscribers registered
// by the Controller, no shared mutable state with core components.
// Grounded on the teacher's OnAchievement callback registration
// (gamification/stats.go), generalized from one event to a named set.
package events

import "sync"

// Name is one of the fixed event identifiers.
type Name string

const (
	// StatusChanged is the Controller's own lifecycle transition
	// (RUNNING/PAUSED/STOPPED), not an appointment-level change.
	StatusChanged Name = "status-changed"
	// AppointmentStatusChanged carries a tracker.Delta.StatusChanged slice:
	// the slots whose domain.Status changed on the most recent check.
	AppointmentStatusChanged Name = "appointment-status-changed"
	CheckCompleted           Name = "check-completed"
	NewAppointments          Name = "new-appointments"
	Error                    Name = "error"
	NotificationSent         Name = "notification-sent"
)

// Event is one published occurrence: Name classifies it, Data carries the
// event-specific payload (e.g. a Delta, a DeliveryReport, an error).
type Event struct {
	Name Name
	Data any
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine's call to Publish and must not block.
type Handler func(Event)

// Bus is a minimal multi-event, multi-subscriber registry.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Name][]Handler)}
}

// Subscribe registers h to be called for every event published under name.
func (b *Bus) Subscribe(name Name, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish invokes every handler subscribed to event.Name, in registration
// order. Handler panics are not recovered — a misbehaving subscriber is a
// programming error the caller should fix, not mask.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Name]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
