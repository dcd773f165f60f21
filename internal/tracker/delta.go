package tracker

import "github.com/ielts-monitor/monitor/internal/domain"

// Delta is the diff returned by Process (spec.md §4.2).
type Delta struct {
	NewAvailable  []domain.Appointment
	StatusChanged []domain.Appointment
	Removed       []domain.Appointment
	AllTracked    []domain.Appointment
}
