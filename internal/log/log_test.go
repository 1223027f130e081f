package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arloliu/dvbsi/internal/config"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog := New(config.LogConfig{Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("table failure", zap.String("table", "bat"))
	require.NoError(t, closeLog())

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "WARN")
	require.Contains(t, out, "table failure")
	require.Contains(t, out, `"table": "bat"`)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sicollect.log")
	logger, closeLog := New(config.LogConfig{
		Level:      "debug",
		File:       path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}, nil)

	logger.Debug("section stored", zap.String("table", "pat"), zap.Int("section", 0))
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	require.Equal(t, "debug", line["level"])
	require.Equal(t, "section stored", line["msg"])
	require.Equal(t, "pat", line["table"])
	require.InDelta(t, 0, line["section"], 0)
}

func TestInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog := New(config.LogConfig{Level: "loud"}, &buf)

	logger.Debug("hidden")
	logger.Info("shown")
	require.NoError(t, closeLog())

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}
