package slogging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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
		{"unknown", LogLevelInfo},
		{"", LogLevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}

func TestSanitizeLogMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain message", "hello world", "hello world"},
		{"newline injection", "line1\nINFO forged entry", "line1 INFO forged entry"},
		{"carriage return", "a\rb", "a b"},
		{"tabs collapsed", "a\t\tb", "a b"},
		{"whitespace only", "  \n\t ", ""},
		{"multiple spaces", "a    b", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeLogMessage(tt.input))
		})
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(Config{
		Level:            LogLevelDebug,
		IsDev:            true,
		LogDir:           dir,
		AlsoLogToConsole: false,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer func() {
		_ = logger.Close()
	}()

	// Exercise all levels; output goes to the rotating file
	logger.Debug("debug %s", "message")
	logger.Info("info message")
	logger.Warn("warn %d", 42)
	logger.Error("error: %v", assert.AnError)
}

func TestGetReturnsLogger(t *testing.T) {
	t.Setenv("COLLAB_LOG_DIR", t.TempDir())
	logger := Get()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.GetSlogger())
}
