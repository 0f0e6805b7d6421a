package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, parseLevel("warn"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "api", "info", "json")
	log.Debug("hidden")
	log.Info("started", slog.String("addr", ":8080"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "api", entry["service"])
	require.Equal(t, "started", entry["msg"])
	require.Equal(t, ":8080", entry["addr"])
}
