package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	echolog "github.com/labstack/gommon/log"
)

// EchoLogger adapts a slog.Logger to Echo's Logger interface so framework
// messages share the structured log instead of Echo's built-in writer.
// Level changes made through Echo apply to the adapter, not the wrapped
// handler, so the handler's own level still caps what gets written.
type EchoLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewEchoLogger wraps the given structured logger for assignment to
// echo.Logger. A nil logger falls back to the process default.
func NewEchoLogger(logger *slog.Logger, level slog.Level) *EchoLogger {
	if logger == nil {
		logger = slog.Default()
	}
	lv := new(slog.LevelVar)
	lv.Set(level)
	return &EchoLogger{logger: logger, level: lv}
}

func (l *EchoLogger) log(level slog.Level, msg string, args ...any) {
	if level < l.level.Level() {
		return
	}
	l.logger.Log(context.TODO(), level, msg, args...)
}

// Output returns the output destination. Output is owned by the wrapped
// handler, so this is always io.Discard.
func (l *EchoLogger) Output() io.Writer {
	return io.Discard
}

// SetOutput is a no-op, output is owned by the wrapped handler.
func (l *EchoLogger) SetOutput(_ io.Writer) {}

// Prefix returns the log prefix, always empty.
func (l *EchoLogger) Prefix() string {
	return ""
}

// SetPrefix is a no-op, scoping comes from logger attributes.
func (l *EchoLogger) SetPrefix(_ string) {}

// SetHeader is a no-op, record layout is owned by the wrapped handler.
func (l *EchoLogger) SetHeader(_ string) {}

// Level reports the adapter level on Echo's scale.
func (l *EchoLogger) Level() echolog.Lvl {
	switch lv := l.level.Level(); {
	case lv <= slog.LevelDebug:
		return echolog.DEBUG
	case lv <= slog.LevelInfo:
		return echolog.INFO
	case lv <= slog.LevelWarn:
		return echolog.WARN
	default:
		return echolog.ERROR
	}
}

// SetLevel maps Echo's level onto the adapter. OFF raises the threshold
// above ERROR rather than discarding the logger.
func (l *EchoLogger) SetLevel(v echolog.Lvl) {
	switch v {
	case echolog.DEBUG:
		l.level.Set(slog.LevelDebug)
	case echolog.INFO:
		l.level.Set(slog.LevelInfo)
	case echolog.WARN:
		l.level.Set(slog.LevelWarn)
	case echolog.ERROR:
		l.level.Set(slog.LevelError)
	default:
		l.level.Set(LevelFatal)
	}
}

// Print logs a message at INFO level.
func (l *EchoLogger) Print(i ...any) {
	l.log(slog.LevelInfo, fmt.Sprint(i...))
}

// Printf logs a formatted message at INFO level.
func (l *EchoLogger) Printf(format string, args ...any) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Printj logs a JSON object at INFO level.
func (l *EchoLogger) Printj(j echolog.JSON) {
	l.log(slog.LevelInfo, "echo log", "data", j)
}

// Debug logs a message at DEBUG level.
func (l *EchoLogger) Debug(i ...any) {
	l.log(slog.LevelDebug, fmt.Sprint(i...))
}

// Debugf logs a formatted message at DEBUG level.
func (l *EchoLogger) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}

// Debugj logs a JSON object at DEBUG level.
func (l *EchoLogger) Debugj(j echolog.JSON) {
	l.log(slog.LevelDebug, "echo debug", "data", j)
}

// Info logs a message at INFO level.
func (l *EchoLogger) Info(i ...any) {
	l.log(slog.LevelInfo, fmt.Sprint(i...))
}

// Infof logs a formatted message at INFO level.
func (l *EchoLogger) Infof(format string, args ...any) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Infoj logs a JSON object at INFO level.
func (l *EchoLogger) Infoj(j echolog.JSON) {
	l.log(slog.LevelInfo, "echo info", "data", j)
}

// Warn logs a message at WARN level.
func (l *EchoLogger) Warn(i ...any) {
	l.log(slog.LevelWarn, fmt.Sprint(i...))
}

// Warnf logs a formatted message at WARN level.
func (l *EchoLogger) Warnf(format string, args ...any) {
	l.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}

// Warnj logs a JSON object at WARN level.
func (l *EchoLogger) Warnj(j echolog.JSON) {
	l.log(slog.LevelWarn, "echo warn", "data", j)
}

// Error logs a message at ERROR level.
func (l *EchoLogger) Error(i ...any) {
	l.log(slog.LevelError, fmt.Sprint(i...))
}

// Errorf logs a formatted message at ERROR level.
func (l *EchoLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, fmt.Sprintf(format, args...))
}

// Errorj logs a JSON object at ERROR level.
func (l *EchoLogger) Errorj(j echolog.JSON) {
	l.log(slog.LevelError, "echo error", "data", j)
}

// Fatal logs at FATAL level and panics so in-flight requests unwind
// through the Recover middleware instead of the process exiting.
func (l *EchoLogger) Fatal(i ...any) {
	msg := fmt.Sprint(i...)
	l.log(LevelFatal, msg)
	panic("echo fatal: " + msg)
}

// Fatalf logs a formatted message at FATAL level and panics.
func (l *EchoLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.log(LevelFatal, msg)
	panic("echo fatal: " + msg)
}

// Fatalj logs a JSON object at FATAL level and panics.
func (l *EchoLogger) Fatalj(j echolog.JSON) {
	l.log(LevelFatal, "echo fatal", "data", j)
	panic(fmt.Sprintf("echo fatal: %v", j))
}

// Panic logs a message at ERROR level and panics.
func (l *EchoLogger) Panic(i ...any) {
	msg := fmt.Sprint(i...)
	l.log(slog.LevelError, msg)
	panic(msg)
}

// Panicf logs a formatted message at ERROR level and panics.
func (l *EchoLogger) Panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.log(slog.LevelError, msg)
	panic(msg)
}

// Panicj logs a JSON object at ERROR level and panics.
func (l *EchoLogger) Panicj(j echolog.JSON) {
	l.log(slog.LevelError, "echo panic", "data", j)
	panic(fmt.Sprintf("%v", j))
}
