package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, ws, body string) {
	t.Helper()
	dir := filepath.Join(ws, ".atelier")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
}

func resetState() {
	CloseAll()
	logsDir = ""
	workspace = ""
	config = loggingConfig{}
	logLevel = LevelInfo
}

func TestInitializeNoConfigIsSilent(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	require.NoError(t, Initialize(ws))
	assert.False(t, IsDebugMode())

	// No logs directory in production mode.
	_, err := os.Stat(filepath.Join(ws, ".atelier", "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestDebugModeWritesCategoryFiles(t *testing.T) {
	defer resetState()
	ws := t.TempDir()
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: debug\n")

	require.NoError(t, Initialize(ws))
	require.True(t, IsDebugMode())

	Routing("decided route %s", "knowledge_only")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".atelier", "logs"))
	require.NoError(t, err)

	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "routing") {
			found = true
			data, err := os.ReadFile(filepath.Join(ws, ".atelier", "logs", e.Name()))
			require.NoError(t, err)
			assert.Contains(t, string(data), "knowledge_only")
		}
	}
	assert.True(t, found, "expected a routing log file")
}

func TestCategoryFilter(t *testing.T) {
	defer resetState()
	ws := t.TempDir()
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: debug\n  categories:\n    phase: false\n")

	require.NoError(t, Initialize(ws))
	assert.False(t, IsCategoryEnabled(CategoryPhase))
	assert.True(t, IsCategoryEnabled(CategoryRouting))
}
