package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("chatty")
	require.Error(t, err)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fxscrape.log")

	logger, closer, err := New("info", "json", path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("day processed", "date", "2024-04-01")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"day processed"`)
	require.Contains(t, string(data), `"date":"2024-04-01"`)
	require.NotContains(t, string(data), "hidden")
}
