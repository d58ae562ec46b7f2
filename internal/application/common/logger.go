package common

import (
	"context"
	"fmt"
	"log"
	"os"
)

// SimLogger is the logging port every system and adapter takes, grounded on
// the teacher's ContainerLogger but extended with leveled helpers so it can
// satisfy narrower consumer interfaces (e.g. market.Logger's Warnf) without
// an adapter shim.
type SimLogger interface {
	Log(level, message string, fields map[string]interface{})
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type contextKey int

const loggerKey contextKey = iota

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger SimLogger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext extracts the logger from context, or a no-op fallback.
func LoggerFromContext(ctx context.Context) SimLogger {
	if logger, ok := ctx.Value(loggerKey).(SimLogger); ok {
		return logger
	}
	return &noOpLogger{}
}

type noOpLogger struct{}

func (l *noOpLogger) Log(string, string, map[string]interface{}) {}
func (l *noOpLogger) Debugf(string, ...any)                      {}
func (l *noOpLogger) Infof(string, ...any)                       {}
func (l *noOpLogger) Warnf(string, ...any)                       {}
func (l *noOpLogger) Errorf(string, ...any)                      {}

// ConsoleLogger writes to stderr via the standard logger, prefixing every
// line with its level. It's the daemon's default logger; teacher code used
// a bare ContainerLogger interface with no concrete implementation shown
// beyond the no-op, so the console format here follows the teacher's
// Log(level, message, metadata) call shape.
type ConsoleLogger struct {
	out *log.Logger
}

func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *ConsoleLogger) Log(level, message string, fields map[string]interface{}) {
	if len(fields) == 0 {
		l.out.Printf("[%s] %s", level, message)
		return
	}
	l.out.Printf("[%s] %s %v", level, message, fields)
}

func (l *ConsoleLogger) Debugf(format string, args ...any) { l.Log("DEBUG", fmt.Sprintf(format, args...), nil) }
func (l *ConsoleLogger) Infof(format string, args ...any)  { l.Log("INFO", fmt.Sprintf(format, args...), nil) }
func (l *ConsoleLogger) Warnf(format string, args ...any)  { l.Log("WARN", fmt.Sprintf(format, args...), nil) }
func (l *ConsoleLogger) Errorf(format string, args ...any) { l.Log("ERROR", fmt.Sprintf(format, args...), nil) }

// BufferingLogger accumulates entries in memory instead of writing them,
// used by tests that assert on what a system logged (e.g. market's
// self-trade warning) without capturing stderr.
type BufferingLogger struct {
	Entries []LogEntry
}

type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

func NewBufferingLogger() *BufferingLogger { return &BufferingLogger{} }

func (l *BufferingLogger) Log(level, message string, fields map[string]interface{}) {
	l.Entries = append(l.Entries, LogEntry{Level: level, Message: message, Fields: fields})
}

func (l *BufferingLogger) Debugf(format string, args ...any) { l.Log("DEBUG", fmt.Sprintf(format, args...), nil) }
func (l *BufferingLogger) Infof(format string, args ...any)  { l.Log("INFO", fmt.Sprintf(format, args...), nil) }
func (l *BufferingLogger) Warnf(format string, args ...any)  { l.Log("WARN", fmt.Sprintf(format, args...), nil) }
func (l *BufferingLogger) Errorf(format string, args ...any) { l.Log("ERROR", fmt.Sprintf(format, args...), nil) }
