// Package logging provides the simulator's logging abstraction.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger provides structured logging capabilities.
// This abstraction allows swapping logging implementations.
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})
}

// defaultLogger implements Logger using Go's standard log package.
type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	debug       bool
}

// NewDefaultLogger creates a logger writing to stdout/stderr.
// Debug output is suppressed unless enabled via NewDebugLogger.
func NewDefaultLogger() Logger {
	return newLogger(false)
}

// NewDebugLogger creates a logger with per-hop debug output enabled.
func NewDebugLogger() Logger {
	return newLogger(true)
}

func newLogger(debug bool) Logger {
	return &defaultLogger{
		errorLogger: log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
		warnLogger:  log.New(os.Stderr, "[WARN] ", log.LstdFlags),
		infoLogger:  log.New(os.Stdout, "[INFO] ", log.LstdFlags),
		debugLogger: log.New(os.Stdout, "[DEBUG] ", log.LstdFlags),
		debug:       debug,
	}
}

func (l *defaultLogger) Error(args ...interface{}) {
	l.errorLogger.Output(2, fmt.Sprint(args...))
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(2, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warn(args ...interface{}) {
	l.warnLogger.Output(2, fmt.Sprint(args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(2, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Info(args ...interface{}) {
	l.infoLogger.Output(2, fmt.Sprint(args...))
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(2, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debug(args ...interface{}) {
	if !l.debug {
		return
	}
	l.debugLogger.Output(2, fmt.Sprint(args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.debugLogger.Output(2, fmt.Sprintf(format, args...))
}

// nopLogger discards everything. Used in tests.
type nopLogger struct{}

// NewNopLogger returns a logger that discards all output.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Error(args ...interface{})                 {}
func (nopLogger) Errorf(format string, args ...interface{}) {}
func (nopLogger) Warn(args ...interface{})                  {}
func (nopLogger) Warnf(format string, args ...interface{})  {}
func (nopLogger) Info(args ...interface{})                  {}
func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Debug(args ...interface{})                 {}
func (nopLogger) Debugf(format string, args ...interface{}) {}
