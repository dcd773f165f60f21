// Package obslog defines the structured logging seam implemented by
// internal/statuslog and consumed by the core components (Tracker,
// Dispatcher, Scheduler, Controller). Defining the interface at the
// consumer side keeps the core engine decoupled from the zap/lumberjack
// choice in internal/statuslog.
package obslog

// Fields is a structured key-value attachment for one log event.
type Fields map[string]any

// Logger is the minimal structured logging contract the core engine
// depends on. internal/statuslog.StatusLog implements it.
type Logger interface {
	Debug(event string, fields Fields)
	Info(event string, fields Fields)
	Warn(event string, fields Fields)
	Error(event string, fields Fields)
}

// Nop is a Logger that discards everything. Useful as a default in tests
// and in components constructed without an explicit logger.
type Nop struct{}

func (Nop) Debug(string, Fields) {}
func (Nop) Info(string, Fields)  {}
func (Nop) Warn(string, Fields)  {}
func (Nop) Error(string, Fields) {}
