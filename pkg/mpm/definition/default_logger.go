// Package definition supplies the logger implementations: the default one
// that mpm.Init installs, and a no-op one.
package definition

import (
	"fmt"
	"log"
	"os"
)

const (
	calldepth = 2
	info      = "INFO"
	warn      = "WARN"
	errorl    = "ERROR"
	debug     = "DEBUG"
)

// NewDefaultLogger builds the logger mpm.Init always installs.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		Logger: log.New(os.Stderr, "mpm ", log.LstdFlags),
		debug:  false,
	}
}

// level prefixes the message with the given severity tag.
func level(prefix, message string) string {
	return fmt.Sprintf("[%s]: %s", prefix, message)
}

// DefaultLogger is the stderr-backed types.Logger used by default.
type DefaultLogger struct {
	*log.Logger
	debug bool
}

func (l *DefaultLogger) Info(v ...interface{}) {
	l.Output(calldepth, level(info, fmt.Sprint(v...)))
}

func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.Output(calldepth, level(info, fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Warn(v ...interface{}) {
	l.Output(calldepth, level(warn, fmt.Sprint(v...)))
}

func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.Output(calldepth, level(warn, fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Error(v ...interface{}) {
	l.Output(calldepth, level(errorl, fmt.Sprint(v...)))
}

func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.Output(calldepth, level(errorl, fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.Output(calldepth, level(debug, fmt.Sprint(v...)))
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.Output(calldepth, level(debug, fmt.Sprintf(format, v...)))
	}
}

// ToggleDebug turns debug-level logging on or off, returning the new value.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	return l.debug
}

// NoopLogger discards everything. Useful in tests that don't want the
// default logger's stderr chatter.
type NoopLogger struct{}

func (NoopLogger) Info(v ...interface{})                 {}
func (NoopLogger) Infof(format string, v ...interface{}) {}
func (NoopLogger) Warn(v ...interface{})                 {}
func (NoopLogger) Warnf(format string, v ...interface{}) {}
func (NoopLogger) Error(v ...interface{})                {}
func (NoopLogger) Errorf(format string, v ...interface{}) {}
func (NoopLogger) Debug(v ...interface{})                {}
func (NoopLogger) Debugf(format string, v ...interface{}) {}
