package domain

import (
	"testing"
	"time"
)

func TestNewCheckResult_Available(t *testing.T) {
	slots := []Appointment{
		{ID: "1", Date: "2026-08-01", Time: "09:00-12:00", Status: StatusAvailable},
		{ID: "2", Date: "2026-08-02", Time: "09:00-12:00", Status: StatusFilled},
	}
	result := NewCheckResult(slots, "https://example.test", time.Now())

	if result.Type != ResultAvailable {
		t.Errorf("Type = %s, want %s", result.Type, ResultAvailable)
	}
	if result.AppointmentCount != 2 {
		t.Errorf("AppointmentCount = %d, want 2", result.AppointmentCount)
	}
	if result.AvailableCount != 1 {
		t.Errorf("AvailableCount = %d, want 1", result.AvailableCount)
	}
	if result.FilledCount != 1 {
		t.Errorf("FilledCount = %d, want 1", result.FilledCount)
	}
}

func TestNewCheckResult_NoSlots(t *testing.T) {
	result := NewCheckResult(nil, "https://example.test", time.Now())
	if result.Type != ResultNoSlots {
		t.Errorf("Type = %s, want %s", result.Type, ResultNoSlots)
	}
	if result.AppointmentCount != 0 {
		t.Errorf("AppointmentCount = %d, want 0", result.AppointmentCount)
	}
}

func TestNewCheckResult_Filled(t *testing.T) {
	slots := []Appointment{
		{ID: "1", Date: "2026-08-01", Time: "09:00-12:00", Status: StatusFilled},
	}
	result := NewCheckResult(slots, "https://example.test", time.Now())
	if result.Type != ResultFilled {
		t.Errorf("Type = %s, want %s", result.Type, ResultFilled)
	}
}

func TestCheckResultCountsConsistency(t *testing.T) {
	slots := []Appointment{
		{ID: "1", Status: StatusAvailable},
		{ID: "2", Status: StatusFilled},
		{ID: "3", Status: StatusPending},
	}
	result := NewCheckResult(slots, "", time.Now())

	if result.AppointmentCount != len(result.Appointments) {
		t.Errorf("AppointmentCount = %d, want len(Appointments) = %d", result.AppointmentCount, len(result.Appointments))
	}
	if result.AvailableCount+result.FilledCount > result.AppointmentCount {
		t.Errorf("AvailableCount(%d)+FilledCount(%d) > AppointmentCount(%d)",
			result.AvailableCount, result.FilledCount, result.AppointmentCount)
	}
}
