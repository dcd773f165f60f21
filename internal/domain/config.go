package domain

import (
	"fmt"
	"time"
)

// LogLevel mirrors spec.md §3's security.logLevel enumeration.
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

// NotificationSettings selects which Dispatcher channels are enabled.
type NotificationSettings struct {
	Desktop  bool `json:"desktop" yaml:"desktop"`
	Audio    bool `json:"audio" yaml:"audio"`
	LogFile  bool `json:"logFile" yaml:"logFile"`
	Telegram bool `json:"telegram" yaml:"telegram"`
}

// AnyEnabled reports whether at least one channel is selected.
func (n NotificationSettings) AnyEnabled() bool {
	return n.Desktop || n.Audio || n.LogFile || n.Telegram
}

// SecuritySettings controls log verbosity and sensitive-data masking.
type SecuritySettings struct {
	MaskSensitiveData bool     `json:"maskSensitiveData" yaml:"maskSensitiveData"`
	LogLevel          LogLevel `json:"logLevel" yaml:"logLevel"`
}

// ServerSettings configures the optional healthcheck endpoint.
type ServerSettings struct {
	HealthCheckPort int `json:"healthCheckPort,omitempty" yaml:"healthCheckPort,omitempty"`
}

// TelegramSettings configures the Telegram notification channel.
type TelegramSettings struct {
	BotToken       string `json:"botToken" yaml:"botToken"`
	ChatID         string `json:"chatId" yaml:"chatId"`
	MessageFormat  string `json:"messageFormat" yaml:"messageFormat"` // "simple" | "detailed"
	EnablePreview  bool   `json:"enablePreview" yaml:"enablePreview"`
}

// MonitorConfig is the fully validated configuration for one Controller
// run, per spec.md §3.
type MonitorConfig struct {
	Cities               []string             `json:"cities" yaml:"cities"`
	ExamModels           []string             `json:"examModels" yaml:"examModels"`
	Months               []int                `json:"months" yaml:"months"`
	CheckInterval        time.Duration        `json:"checkInterval" yaml:"checkInterval"`
	BaseURL              string               `json:"baseUrl" yaml:"baseUrl"`
	NotificationSettings NotificationSettings `json:"notificationSettings" yaml:"notificationSettings"`
	Security             SecuritySettings     `json:"security" yaml:"security"`
	Server               ServerSettings       `json:"server" yaml:"server"`
	Telegram             TelegramSettings     `json:"telegram" yaml:"telegram"`
	MaxTrackingDays      int                  `json:"maxTrackingDays" yaml:"maxTrackingDays"`
}

const (
	MinCheckInterval        = 5 * time.Second
	MaxCheckInterval        = time.Hour
	DefaultMaxTrackingDays  = 30
	DefaultCheckInterval    = 60 * time.Second
)

// ValidationError is one field-level config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every field-level error found by Validate.
// An invalid config is always rejected with the full enumerated set, never
// just the first failure, per spec.md §3 ("Validation is total").
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msg := fmt.Sprintf("%d config validation error(s): ", len(e))
	for i, ve := range e {
		if i > 0 {
			msg += "; "
		}
		msg += ve.Error()
	}
	return msg
}

var validExamModels = map[string]bool{
	"IELTS": true, "CDIELTS": true, "UKVI": true,
}

var validLogLevels = map[LogLevel]bool{
	LogLevelError: true, LogLevelWarn: true, LogLevelInfo: true, LogLevelDebug: true,
}

var validMessageFormats = map[string]bool{
	"simple": true, "detailed": true,
}

// Validate checks every recognized field and returns the complete set of
// violations. A nil/empty return means the config is acceptable.
func (c *MonitorConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	if len(c.Cities) == 0 {
		errs = append(errs, ValidationError{"cities", "must contain at least one city"})
	}
	if len(c.ExamModels) == 0 {
		errs = append(errs, ValidationError{"examModels", "must contain at least one exam model"})
	}
	for _, m := range c.ExamModels {
		if !validExamModels[m] {
			errs = append(errs, ValidationError{"examModels", fmt.Sprintf("unrecognized exam model %q", m)})
		}
	}
	if len(c.Months) == 0 {
		errs = append(errs, ValidationError{"months", "must contain at least one month"})
	}
	for _, m := range c.Months {
		if m < 1 || m > 12 {
			errs = append(errs, ValidationError{"months", fmt.Sprintf("month %d out of range 1-12", m)})
		}
	}
	if c.CheckInterval < MinCheckInterval || c.CheckInterval > MaxCheckInterval {
		errs = append(errs, ValidationError{"checkInterval", fmt.Sprintf(
			"must be between %s and %s, got %s", MinCheckInterval, MaxCheckInterval, c.CheckInterval)})
	}
	if c.BaseURL == "" {
		errs = append(errs, ValidationError{"baseUrl", "must not be empty"})
	}
	if !c.NotificationSettings.AnyEnabled() {
		errs = append(errs, ValidationError{"notificationSettings", "at least one channel must be enabled"})
	}
	if c.NotificationSettings.Telegram {
		if c.Telegram.BotToken == "" {
			errs = append(errs, ValidationError{"telegram.botToken", "required when notificationSettings.telegram is true"})
		}
		if c.Telegram.ChatID == "" {
			errs = append(errs, ValidationError{"telegram.chatId", "required when notificationSettings.telegram is true"})
		}
		if c.Telegram.MessageFormat != "" && !validMessageFormats[c.Telegram.MessageFormat] {
			errs = append(errs, ValidationError{"telegram.messageFormat", fmt.Sprintf("unrecognized format %q", c.Telegram.MessageFormat)})
		}
	}
	if c.Security.LogLevel != "" && !validLogLevels[c.Security.LogLevel] {
		errs = append(errs, ValidationError{"security.logLevel", fmt.Sprintf("unrecognized level %q", c.Security.LogLevel)})
	}
	if c.Server.HealthCheckPort < 0 || c.Server.HealthCheckPort > 65535 {
		errs = append(errs, ValidationError{"server.healthCheckPort", "must be a valid TCP port"})
	}
	if c.MaxTrackingDays < 0 {
		errs = append(errs, ValidationError{"maxTrackingDays", "must not be negative"})
	}

	return errs
}

// WithDefaults returns a copy of c with zero-value optional fields filled
// in from the documented defaults (spec.md §3).
func (c MonitorConfig) WithDefaults() MonitorConfig {
	if c.CheckInterval == 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.MaxTrackingDays == 0 {
		c.MaxTrackingDays = DefaultMaxTrackingDays
	}
	if c.Security.LogLevel == "" {
		c.Security.LogLevel = LogLevelInfo
	}
	if c.Telegram.MessageFormat == "" {
		c.Telegram.MessageFormat = "simple"
	}
	return c
}

// Filters extracts the Fetcher filter set from the config.
func (c MonitorConfig) Filters() Filters {
	return Filters{Cities: c.Cities, ExamModels: c.ExamModels, Months: c.Months}
}
