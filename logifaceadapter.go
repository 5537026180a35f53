package corofiber

import (
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// LogifaceLogger adapts a logiface.Logger to the internal Logger
// interface. It accepts only loggers whose event type is *izerolog.Event,
// i.e. the izerolog (zerolog) backend; logiface loggers built on other
// backends have a different type and cannot be wrapped.
type LogifaceLogger struct {
	l *logiface.Logger[*izerolog.Event]
}

// NewLogifaceLogger wraps an already-configured logiface.Logger.
func NewLogifaceLogger(l *logiface.Logger[*izerolog.Event]) LogifaceLogger {
	return LogifaceLogger{l: l}
}

// NewZerologLogger is a convenience constructor wiring a zerolog.Logger
// straight through logiface, equivalent to:
//
//	izerolog.L.New(izerolog.WithZerolog(z))
func NewZerologLogger(z zerolog.Logger) LogifaceLogger {
	return LogifaceLogger{l: izerolog.L.New(izerolog.WithZerolog(z))}
}

func (a LogifaceLogger) Debug(msg string, kv ...any) { a.emit(logiface.LevelDebug, msg, kv) }
func (a LogifaceLogger) Info(msg string, kv ...any)  { a.emit(logiface.LevelInformational, msg, kv) }
func (a LogifaceLogger) Warn(msg string, kv ...any)  { a.emit(logiface.LevelWarning, msg, kv) }
func (a LogifaceLogger) Error(msg string, kv ...any) { a.emit(logiface.LevelError, msg, kv) }

func (a LogifaceLogger) emit(level logiface.Level, msg string, kv []any) {
	if a.l == nil {
		return
	}
	b := a.l.Build(level)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b = b.Interface(key, kv[i+1])
	}
	b.Log(msg)
}
