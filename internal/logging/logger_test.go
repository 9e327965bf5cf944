package logging

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func resetGlobalLogger(t *testing.T) {
	t.Helper()
	globalLogger = nil
	initOnce = sync.Once{}
	require.NoError(t, SetPackageLogLevels(map[string]string{}))
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	t.Setenv("LOG_TIMESTAMP", "2024-01-01T00:00:00Z")
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	t.Cleanup(restore)
	return &buf
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel LogLevel
	}{
		{"debug level", "debug", DEBUG},
		{"info level", "info", INFO},
		{"warn level", "warn", WARN},
		{"error level", "error", ERROR},
		{"fatal level", "fatal", FATAL},
		{"mixed case", "WaRn", WARN},
		{"unknown falls back to info", "verbose", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobalLogger(t)
			require.NoError(t, Initialize(tt.level))
			assert.Equal(t, tt.wantLevel, GetLogger("x").level)
		})
	}
}

func TestLoggerFormat(t *testing.T) {
	resetGlobalLogger(t)
	buf := captureOutput(t)
	require.NoError(t, Initialize("debug"))

	logger := GetLogger("lifecycle.notifier")
	logger.Info("started %d groups", 3)

	assert.Equal(t, "[2024-01-01T00:00:00Z] [INFO] lifecycle.notifier: started 3 groups\n", buf.String())
}

func TestLoggerMessagesAreNotFormattedTwice(t *testing.T) {
	resetGlobalLogger(t)
	buf := captureOutput(t)

	logger := GetLogger("x")
	logger.Info("%s", "100% done")
	logger.InfoWithFields("50% done", Field("step", 2))

	out := buf.String()
	assert.Contains(t, out, "x: 100% done\n")
	assert.Contains(t, out, "x: 50% done | step=2\n")
}

func TestLoggerLevelFiltering(t *testing.T) {
	resetGlobalLogger(t)
	buf := captureOutput(t)
	require.NoError(t, Initialize("warn"))

	logger := GetLogger("x")
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	out := buf.String()
	assert.NotContains(t, out, "[DEBUG]")
	assert.NotContains(t, out, "[INFO]")
	assert.Contains(t, out, "[WARN] x: warn")
	assert.Contains(t, out, "[ERROR] x: error")
}

func TestPackageLevelOverrides(t *testing.T) {
	resetGlobalLogger(t)
	buf := captureOutput(t)
	require.NoError(t, Initialize("info", map[string]string{
		"lifecycle.*":        "debug",
		"lifecycle.notifier": "error",
		"apiserver":          "warn",
	}))

	GetLogger("lifecycle.hook").Debug("wildcard")
	GetLogger("lifecycle.notifier").Warn("exact suppresses")
	GetLogger("apiserver").Info("suppressed")
	GetLogger("pipeline").Info("default")

	out := buf.String()
	assert.Contains(t, out, "lifecycle.hook: wildcard")
	assert.NotContains(t, out, "exact suppresses")
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "pipeline: default")
}

func TestSetPackageLogLevelsRejectsInvalid(t *testing.T) {
	resetGlobalLogger(t)
	err := SetPackageLogLevels(map[string]string{"x": "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `package "x"`)
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("config.watcher", "config.watcher"))
	assert.True(t, matchesPattern("config.watcher", "config.*"))
	assert.False(t, matchesPattern("configwatcher", "config.*"))
	assert.False(t, matchesPattern("controller", "config.*"))
}

func TestFieldsAreSortedAndMerged(t *testing.T) {
	resetGlobalLogger(t)
	buf := captureOutput(t)

	logger := GetLogger("x").WithField("b", 2).WithField("a", 1)
	logger.InfoWithFields("hello", Field("c", 3), Field("a", "override"))

	assert.True(t, strings.HasSuffix(buf.String(), "hello | a=override b=2 c=3\n"), buf.String())
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	resetGlobalLogger(t)
	parent := GetLogger("x").WithField("k", "v")
	child := parent.WithField("k2", "v2")

	assert.Len(t, parent.fields, 1)
	assert.Len(t, child.fields, 2)
}

func TestWithContextAddsRequestAndTraceIDs(t *testing.T) {
	resetGlobalLogger(t)
	buf := captureOutput(t)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	ctx = ContextWithRequestID(ctx, "req-1")

	GetLogger("x").WithContext(ctx).Info("handled")

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "trace_id=0102030405060708090a0b0c0d0e0f10")
	assert.Contains(t, out, "span_id=0102030405060708")
}

func TestRequestIDFromContext(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := RequestIDFromContext(ContextWithRequestID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}

func TestFatalCallsExit(t *testing.T) {
	resetGlobalLogger(t)
	captureOutput(t)

	var code int
	prev := exitFunc
	exitFunc = func(c int) { code = c }
	t.Cleanup(func() { exitFunc = prev })

	GetLogger("x").Fatal("boom")
	assert.Equal(t, 1, code)
}
