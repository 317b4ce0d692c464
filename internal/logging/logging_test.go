package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupStderrOnly(t *testing.T) {
	log, err := Setup("", "info")
	require.NoError(t, err)
	require.NotNil(t, log)
	require.False(t, log.Enabled(context.Background(), slog.LevelDebug), "debug must be off at info level")
}

func TestSetupLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "garbage"} {
		log, err := Setup("", level)
		require.NoError(t, err, level)
		require.NotNil(t, log)
	}
}

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "deskwatch.log")

	log, err := Setup(path, "info")
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseFile() })

	log.Info("проверка записи", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "проверка записи"))
	require.True(t, strings.Contains(string(data), "key=value"))
}

func TestSetupFileDebugFiltered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskwatch.log")

	log, err := Setup(path, "warn")
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseFile() })

	log.Info("не должно попасть")
	log.Warn("должно попасть")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(data), "не должно попасть"))
	require.True(t, strings.Contains(string(data), "должно попасть"))
}
