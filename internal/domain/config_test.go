package domain

import (
	"testing"
	"time"
)

func validConfig() MonitorConfig {
	return MonitorConfig{
		Cities:        []string{"Tehran"},
		ExamModels:    []string{"IELTS"},
		Months:        []int{8},
		CheckInterval: DefaultCheckInterval,
		BaseURL:       "https://example.test/timetable",
		NotificationSettings: NotificationSettings{
			LogFile: true,
		},
		MaxTrackingDays: 30,
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidate_AggregatesAllErrors(t *testing.T) {
	cfg := MonitorConfig{
		Months:        []int{13},
		CheckInterval: time.Millisecond,
	}
	errs := cfg.Validate()
	if len(errs) < 2 {
		t.Fatalf("Validate() returned %d errors, want at least 2 (months out of range + interval too short)", len(errs))
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	cfg := MonitorConfig{}
	errs := cfg.Validate()

	wantFields := map[string]bool{
		"cities": false, "examModels": false, "months": false,
		"checkInterval": false, "baseUrl": false, "notificationSettings": false,
	}
	for _, e := range errs {
		if _, ok := wantFields[e.Field]; ok {
			wantFields[e.Field] = true
		}
	}
	for field, found := range wantFields {
		if !found {
			t.Errorf("Validate() missing expected error for field %q", field)
		}
	}
}

func TestValidate_TelegramRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.NotificationSettings.Telegram = true

	errs := cfg.Validate()
	found := map[string]bool{}
	for _, e := range errs {
		found[e.Field] = true
	}
	if !found["telegram.botToken"] {
		t.Error("Validate() did not flag missing telegram.botToken")
	}
	if !found["telegram.chatId"] {
		t.Error("Validate() did not flag missing telegram.chatId")
	}
}

func TestWithDefaults(t *testing.T) {
	var cfg MonitorConfig
	cfg = cfg.WithDefaults()

	if cfg.CheckInterval != DefaultCheckInterval {
		t.Errorf("CheckInterval = %v, want %v", cfg.CheckInterval, DefaultCheckInterval)
	}
	if cfg.MaxTrackingDays != DefaultMaxTrackingDays {
		t.Errorf("MaxTrackingDays = %d, want %d", cfg.MaxTrackingDays, DefaultMaxTrackingDays)
	}
	if cfg.Security.LogLevel != LogLevelInfo {
		t.Errorf("LogLevel = %s, want %s", cfg.Security.LogLevel, LogLevelInfo)
	}
}
