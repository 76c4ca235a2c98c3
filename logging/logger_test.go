package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = (*ChatLogger)(nil)
	_ Logger = NoOpLogger{}
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", LogLevelDebug, true},
		{"INFO", LogLevelInfo, true},
		{"", LogLevelInfo, true},
		{"warning", LogLevelWarn, true},
		{"error", LogLevelError, true},
		{"loud", LogLevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestChatLogger_ComponentAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf}).
		WithComponent("scheduler").
		WithEngine("e1")

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Info("queued", "depth", 3)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "queued", rec["msg"])
	assert.Equal(t, "scheduler", rec["component"])
	assert.Equal(t, "e1", rec["engine_id"])
	assert.EqualValues(t, 3, rec["depth"])
}

func TestChatLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})
	_ = parent.With("locale", "de")

	parent.Info("plain")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	_, has := rec["locale"]
	assert.False(t, has)
}

func TestLogLevelString(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		lvl, ok := ParseLevel(name)
		require.True(t, ok)
		assert.Equal(t, name, lvl.String())
	}
	assert.Equal(t, "level(9)", LogLevel(9).String())
}

func TestChatLogger_WarnPassesInfoThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})
	l.Warn("completion request dropped", "provider", "gemini", "status", 500)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "gemini", rec["provider"])
	assert.EqualValues(t, 500, rec["status"])
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l := NewSlogLogger(LogLevelInfo, "text", false)
	assert.Same(t, Logger(l), OrNoOp(l))
}
