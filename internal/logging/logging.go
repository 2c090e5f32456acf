// Package logging is the process-wide logging surface: a small
// printf-style Logger interface that components accept for injection,
// plus a stdlib-backed default carrying a per-component prefix.
package logging

import "log"

// Logger interface for dependency injection.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// StdLogger writes through the standard library logger, tagging every
// line with the component name and a level.
type StdLogger struct {
	logger *log.Logger
}

var _ Logger = (*StdLogger)(nil)

// New returns a StdLogger for the named component, e.g. New("monitor")
// prefixes lines with "[monitor]".
func New(component string) *StdLogger {
	return &StdLogger{logger: log.New(log.Writer(), "["+component+"] ", log.LstdFlags)}
}

func (l *StdLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Printf("[DEBUG] "+msg, fields...)
}

func (l *StdLogger) Info(msg string, fields ...interface{}) {
	l.logger.Printf("[INFO] "+msg, fields...)
}

func (l *StdLogger) Warn(msg string, fields ...interface{}) {
	l.logger.Printf("[WARN] "+msg, fields...)
}

func (l *StdLogger) Error(msg string, fields ...interface{}) {
	l.logger.Printf("[ERROR] "+msg, fields...)
}

// Nop discards everything. Useful as a test default.
type Nop struct{}

var _ Logger = Nop{}

func (Nop) Debug(string, ...interface{}) {}
func (Nop) Info(string, ...interface{})  {}
func (Nop) Warn(string, ...interface{})  {}
func (Nop) Error(string, ...interface{}) {}
