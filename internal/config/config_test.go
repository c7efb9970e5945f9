package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "updraft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
executor:
  type: script
  command: ./build.sh
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:3000", cfg.Server.PublicURL)
	assert.Equal(t, ".updraft/updraft.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 15, cfg.Build.TimeoutMinutes)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_BLOB_PATH", "/var/lib/updraft/blobs")
	path := writeConfig(t, `
storage:
  blob_path: ${TEST_BLOB_PATH}
executor:
  type: script
  command: ./build.sh
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/updraft/blobs", cfg.Storage.BlobPath)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UPDRAFT_PORT", "4100")
	t.Setenv("UPDRAFT_EXECUTOR_ENDPOINT", "http://builder:4000/jobs")
	path := writeConfig(t, `
executor:
  type: script
  command: ./build.sh
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, "http", cfg.Executor.Type)
	assert.Equal(t, "http://builder:4000/jobs", cfg.Executor.Endpoint)
}

func TestValidateExecutor(t *testing.T) {
	path := writeConfig(t, `
executor:
  type: http
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")

	path = writeConfig(t, `
executor:
  type: carrier-pigeon
`)
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown executor type")
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updraft.yaml")

	require.NoError(t, Init(path, false))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "script", cfg.Executor.Type)

	err = Init(path, false)
	require.Error(t, err, "existing file requires --force")
	require.NoError(t, Init(path, true))
}

func TestNormalizeLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel("debug"))
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel("DEBUG"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("bogus"))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("json"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat(""))
}
