package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRespectsLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Config{Level: "warn", Component: "pipeline", Output: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown", "row", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "component=pipeline")
	assert.Contains(t, out, "row=7")
}

func TestWithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Config{Component: "commission", Output: &buf})
	require.NoError(t, err)
	defer closeFn()

	httpLogger := logger.With("subsystem", "http")
	httpLogger.Info("upload accepted")
	logger.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "component=commission")
	assert.Contains(t, lines[0], "subsystem=http")
	assert.NotContains(t, lines[1], "subsystem=http")
}

func TestNewWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "commission.log")
	logger, closeFn, err := New(Config{File: path, Output: &bytes.Buffer{}})
	require.NoError(t, err)

	logger.Info("run finished")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run finished")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}
