package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "formdesk.log")

	logger, err := New("debug", "json", path)
	require.NoError(t, err)
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formdesk.log")

	logger, err := New("warn", "json", path)
	require.NoError(t, err)
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "quiet")
	require.Contains(t, string(data), "loud")
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
}
