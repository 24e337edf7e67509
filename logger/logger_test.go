package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleLogger_LevelFilteringGatesEachSeverity(t *testing.T) {
	var buf bytes.Buffer
	log := New("app")
	log.SetOutput(&buf)
	log.SetLevel(LogLevelDebug)

	cases := []struct {
		level   LogLevel
		logFunc func(string, ...any)
	}{
		{LogLevelDebug, log.Debug},
		{LogLevelInfo, log.Info},
		{LogLevelWarn, log.Warn},
		{LogLevelError, log.Error},
	}

	for _, tc := range cases {
		t.Run(tc.level.String(), func(t *testing.T) {
			buf.Reset()
			tc.logFunc("hello %s", "world")
			out := buf.String()
			assert.Contains(t, out, tc.level.String())
			assert.Contains(t, out, "hello world")
		})
	}
}

func TestConsoleLogger_SetLevelSuppressesQuieterCalls(t *testing.T) {
	var buf bytes.Buffer
	log := New("app")
	log.SetOutput(&buf)
	log.SetLevel(LogLevelWarn)

	buf.Reset()
	log.Debug("should not appear")
	assert.Empty(t, buf.String())

	buf.Reset()
	log.Info("should not appear")
	assert.Empty(t, buf.String())

	buf.Reset()
	log.Warn("should appear")
	assert.NotEmpty(t, buf.String())

	buf.Reset()
	log.Error("should appear")
	assert.NotEmpty(t, buf.String())
}

func TestConsoleLogger_EmptyTagOmitsBrackets(t *testing.T) {
	var buf bytes.Buffer
	log := New("")
	log.SetOutput(&buf)
	log.SetLevel(LogLevelInfo)

	log.Info("no tag here")
	assert.NotContains(t, buf.String(), "[]")
}

func TestDiscard_NeverWrites(t *testing.T) {
	d := Discard()
	d.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelNone, d.GetLevel())

	d.Debug("x")
	d.Info("x")
	d.Warn("x")
	d.Error("x")
}

func TestRegistry_SetDefaultRoutesPackageFunctions(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	log := New("")
	log.SetOutput(&buf)
	log.SetLevel(LogLevelDebug)
	SetDefault(log)

	LogInfo("via registry")
	assert.Contains(t, buf.String(), "via registry")
}

func TestRegistry_SetDefaultNilFallsBackToDiscard(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	SetDefault(nil)
	assert.Equal(t, LogLevelNone, Default().GetLevel())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"none", LogLevelNone},
		{"off", LogLevelNone},
		{"invalid", LogLevelInfo},
		{"", LogLevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelNone, "NONE"},
		{LogLevelError, "ERROR"},
		{LogLevelWarn, "WARN"},
		{LogLevelInfo, "INFO"},
		{LogLevelDebug, "DEBUG"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}
