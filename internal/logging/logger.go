// Package logging provides the named, leveled logger used across groundwork.
//
// Get a named logger for a component and log printf-style or with fields:
//
//	logger := logging.GetLogger("lifecycle.notifier")
//	logger.Info("starting %d groups", len(groups))
//	logger.InfoWithFields("group notified",
//	    logging.Field("group", name),
//	    logging.Field("duration_ms", elapsed.Milliseconds()),
//	)
//
// Loggers are immutable: WithField, WithFields and WithContext return new
// loggers, so a logger can be shared between goroutines without coordination.
//
// Levels can be overridden per logger name. A pattern ending in ".*" matches
// every name below that prefix:
//
//	logging.Initialize("info", map[string]string{
//	    "lifecycle.*": "debug",
//	    "apiserver":   "warn",
//	})
//
// Set LOG_TIMESTAMP to pin the timestamp in tests.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *Logger
	initOnce     sync.Once

	outputMu sync.Mutex
	output   io.Writer = os.Stderr

	// exitFunc is swapped in tests so Fatal does not terminate the test binary.
	exitFunc = os.Exit
)

// Logger writes leveled log lines prefixed with its name.
type Logger struct {
	level  LogLevel
	name   string
	fields map[string]interface{}
	ctx    context.Context
}

// Initialize sets the default level and optional per-package overrides.
// Unknown default levels fall back to INFO.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	globalLogger = &Logger{
		level: level,
		name:  "groundwork",
	}

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		if err := SetPackageLogLevels(packageLevels[0]); err != nil {
			return err
		}
	}
	return nil
}

// GetLogger returns a logger with the given name at the global level.
func GetLogger(name string) *Logger {
	initOnce.Do(func() {
		if globalLogger == nil {
			_ = Initialize("info")
		}
	})
	return &Logger{
		level:  globalLogger.level,
		name:   name,
		fields: make(map[string]interface{}),
	}
}

// SetOutput redirects all log output to w and returns a func restoring the
// previous writer.
func SetOutput(w io.Writer) func() {
	outputMu.Lock()
	defer outputMu.Unlock()
	prev := output
	output = w
	return func() {
		outputMu.Lock()
		defer outputMu.Unlock()
		output = prev
	}
}

// Name returns the logger name.
func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) shouldLog(level LogLevel) bool {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return level >= pkgLevel
	}
	return level >= l.level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.shouldLog(level)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logf(DEBUG, msg, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.logf(INFO, msg, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.logf(WARN, msg, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logf(ERROR, msg, args...)
	}
}

// Fatal logs and exits with code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.shouldLog(FATAL) {
		l.logf(FATAL, msg, args...)
		exitFunc(1)
	}
}

// ErrorWithErr logs msg followed by err.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	if l.shouldLog(ERROR) {
		args = append(args, err)
		l.logf(ERROR, msg+" - %v", args...)
	}
}

// DebugWithFields logs a debug message with structured fields
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.shouldLog(DEBUG) {
		l.logWithFields(DEBUG, msg, fields...)
	}
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.shouldLog(INFO) {
		l.logWithFields(INFO, msg, fields...)
	}
}

// WarnWithFields logs a warning message with structured fields
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.shouldLog(WARN) {
		l.logWithFields(WARN, msg, fields...)
	}
}

// ErrorWithFields logs an error message with structured fields
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.shouldLog(ERROR) {
		l.logWithFields(ERROR, msg, fields...)
	}
}

// WithName returns a copy of the logger under a different name.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		level:  l.level,
		name:   name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
}

// WithField returns a child logger carrying key=value on every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	child := &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
	child.fields[key] = value
	return child
}

// WithFields returns a child logger carrying all given fields.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	child := &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
	for _, f := range fields {
		child.fields[f.Key] = f.Value
	}
	return child
}

// WithContext returns a child logger that adds request_id, trace_id and
// span_id from ctx when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    ctx,
	}
}

func levelName(level LogLevel) string {
	return strings.ToUpper(level.String())
}
