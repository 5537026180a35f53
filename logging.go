package corofiber

import "log"

// Logger is the minimal structured logging sink used internally by a
// Runtime. It is kept free of any third-party dependency so callers who
// have no opinion about structured logging are not forced to pull one in;
// see NewLogifaceLogger for an opinionated adapter.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// NoOpLogger discards everything. It is the default Logger for a Runtime
// constructed without WithLogger.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// StdLogger adapts the standard library's log package to Logger, useful
// for quick diagnostics without pulling in a structured backend.
type StdLogger struct {
	*log.Logger
}

// NewStdLogger returns a Logger that writes via log.Default.
func NewStdLogger() StdLogger {
	return StdLogger{Logger: log.Default()}
}

func (l StdLogger) Debug(msg string, kv ...any) { l.logf("DEBUG", msg, kv) }
func (l StdLogger) Info(msg string, kv ...any)  { l.logf("INFO", msg, kv) }
func (l StdLogger) Warn(msg string, kv ...any)  { l.logf("WARN", msg, kv) }
func (l StdLogger) Error(msg string, kv ...any) { l.logf("ERROR", msg, kv) }

func (l StdLogger) logf(level, msg string, kv []any) {
	l.Printf("%s: corofiber: %s %v", level, msg, kv)
}
