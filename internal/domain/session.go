package domain

import "time"

// Session is one contiguous RUNNING period between Controller.Start and
// Controller.Stop, identified by SessionID (spec.md §3, §4.5).
type Session struct {
	SessionID          string        `json:"sessionId"`
	StartTime          time.Time     `json:"startTime"`
	EndTime            *time.Time    `json:"endTime,omitempty"`
	ChecksPerformed    int           `json:"checksPerformed"`
	NotificationsSent  int           `json:"notificationsSent"`
	Errors             []SessionError `json:"errors,omitempty"`
	Configuration      MonitorConfig `json:"configuration"`
}

// SessionError records one categorized error observed during a session.
type SessionError struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
}
