// Package statuslog implements spec.md §4.7: append-only, line-delimited
// JSON event logging with size/count-bounded rotation, plus the dedicated
// notifications.log sink the Dispatcher's logFile channel writes through.
// Grounded on the pack's zap+lumberjack idiom (KurtSkinny-telegram-userbot)
// and the teacher's own log.Printf call sites, generalized to structured
// fields via the obslog.Logger seam.
package statuslog

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/ielts-monitor/monitor/internal/domain"
	"github.com/ielts-monitor/monitor/internal/obslog"
)

const (
	defaultMaxSizeMB  = 5
	defaultMaxBackups = 5
)

// Config controls where StatusLog writes and how it rotates (spec.md §4.7).
type Config struct {
	EventLogPath         string // logs/monitor.log
	NotificationsLogPath string // logs/notifications.log
	ErrorLogPath         string // logs/errors.log
	MaxSizeMB            int    // default 5
	MaxBackups           int    // default 5
	Level                domain.LogLevel
	SessionID            string
}

// StatusLog implements obslog.Logger (the general event log) and
// dispatcher.NotificationWriter (the dedicated notifications sink).
type StatusLog struct {
	event         *zap.Logger
	notifications *zap.Logger
	errors        *zap.Logger
	sessionID     string
}

// New builds a StatusLog from cfg. Filesystem errors opening the error
// log are the one case spec.md §7 marks fatal ("permission errors on the
// error log itself are fatal"); callers should treat a non-nil err here
// accordingly.
func New(cfg Config) (*StatusLog, error) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaultMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = defaultMaxBackups
	}
	if cfg.ErrorLogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ErrorLogPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating error log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.ErrorLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening error log %s: %w", cfg.ErrorLogPath, err)
		}
		f.Close()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.MessageKey = "event"
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	eventCore := zapcore.NewCore(encoder, rotatingSink(cfg.EventLogPath, cfg.MaxSizeMB, cfg.MaxBackups), levelEnabler(cfg.Level))
	notifCore := zapcore.NewCore(encoder, rotatingSink(cfg.NotificationsLogPath, cfg.MaxSizeMB, cfg.MaxBackups), zapcore.DebugLevel)
	errCore := zapcore.NewCore(encoder, rotatingSink(cfg.ErrorLogPath, cfg.MaxSizeMB, cfg.MaxBackups), zapcore.ErrorLevel)

	return &StatusLog{
		event:         zap.New(eventCore),
		notifications: zap.New(notifCore),
		errors:        zap.New(errCore),
		sessionID:     cfg.SessionID,
	}, nil
}

func rotatingSink(path string, maxSizeMB, maxBackups int) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   false,
	})
}

func levelEnabler(level domain.LogLevel) zapcore.LevelEnabler {
	switch level {
	case domain.LogLevelError:
		return zapcore.ErrorLevel
	case domain.LogLevelWarn:
		return zapcore.WarnLevel
	case domain.LogLevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (s *StatusLog) fields(extra obslog.Fields) []zap.Field {
	fields := make([]zap.Field, 0, len(extra)+1)
	if s.sessionID != "" {
		fields = append(fields, zap.String("sessionId", s.sessionID))
	}
	for k, v := range extra {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

func (s *StatusLog) Debug(event string, fields obslog.Fields) { s.event.Debug(event, s.fields(fields)...) }
func (s *StatusLog) Info(event string, fields obslog.Fields)  { s.event.Info(event, s.fields(fields)...) }
func (s *StatusLog) Warn(event string, fields obslog.Fields)  { s.event.Warn(event, s.fields(fields)...) }

func (s *StatusLog) Error(event string, fields obslog.Fields) {
	f := s.fields(fields)
	s.event.Error(event, f...)
	s.errors.Error(event, f...)
}

// WriteNotificationLine implements dispatcher.NotificationWriter.
func (s *StatusLog) WriteNotificationLine(line []byte) error {
	s.notifications.Info(string(line))
	return nil
}

// Flush syncs all three underlying cores. Every Sync error, including a
// lumberjack-backed file's, is discarded, so neither a sync nor a
// rotation/removal problem ever fails the flush (spec.md §4.7: "Cleanup
// errors are non-fatal").
func (s *StatusLog) Flush() {
	_ = s.event.Sync()
	_ = s.notifications.Sync()
	_ = s.errors.Sync()
}
