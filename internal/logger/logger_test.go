package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelGating(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core), WARN)

	l.Debug("Engine", "dropped %d", 1)
	l.Info("Engine", "dropped %d", 2)
	l.Warn("Engine", "kept %d", 3)
	l.Error("Engine", "kept %d", 4)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "kept 3", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "Engine", entries[0].ContextMap()["module"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)

	l.SetLevel(SILENT)
	l.Error("Engine", "never")
	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, SILENT, l.GetLevel())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Level: DEBUG, Output: &buf, Format: FormatJSON, Service: "posture-server"})

	l.Info("Session", "started %s", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "started abc", entry["msg"])
	assert.Equal(t, "Session", entry["module"])
	assert.Equal(t, "posture-server", entry["service_name"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(INFO, &buf, false)

	l.Warn("Source", "mailbox full")

	line := buf.String()
	assert.Contains(t, line, "WARN")
	assert.Contains(t, line, "mailbox full")
	assert.Contains(t, line, `"module": "Source"`)
	assert.False(t, strings.Contains(line, "\033["))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"warning", WARN, false},
		{"error", ERROR, false},
		{"none", SILENT, false},
		{"loud", INFO, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantErr, err != nil, tt.in)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatConsole, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestGlobalsBeforeInit(t *testing.T) {
	assert.NotNil(t, Zap())
	assert.Equal(t, INFO, GetLevel())
	Info("Test", "no panic without a default logger")
}
