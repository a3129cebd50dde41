package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{" Warn ", slog.LevelWarn, true},
		{"ERROR", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultConfig_ReadsEnv(t *testing.T) {
	t.Setenv("GOVIS_LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, DefaultConfig().Level)

	t.Setenv("GOVIS_LOG_LEVEL", "nonsense")
	assert.Equal(t, slog.LevelInfo, DefaultConfig().Level)
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(Config{Level: slog.LevelInfo, Format: "json"}, &buf))

	log.Info("frame rendered", slog.Int("frame", 3))
	log.Debug("hidden")

	assert.Contains(t, buf.String(), `"msg":"frame rendered"`)
	assert.Contains(t, buf.String(), `"frame":3`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "govis.log")
	log := NewLogger(Config{Level: slog.LevelInfo, File: path, MaxSizeMB: 1})

	log.Info("export finished")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "export finished")
}
