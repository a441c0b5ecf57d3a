package setup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp-server")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	return path
}

func TestLoadClientConfig_Missing(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoadClientConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestConfigure_PreservesOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	existing := `{"theme":"dark","mcpServers":{"other":{"command":"/bin/other"}}}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0644))

	binary := writeExecutable(t)
	got, err := Configure(Options{ConfigPath: path, BinaryPath: binary, DataDir: "/data/advisor"})
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "dark", raw["theme"])

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.Contains(t, cfg.MCPServers, "other")
	entry := cfg.MCPServers[ServerName]
	assert.Equal(t, binary, entry.Command)
	assert.Equal(t, "/data/advisor", entry.Env["BIOMARKER_DATA_DIR"])
}

func TestGetStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	status, err := GetStatus(path)
	require.NoError(t, err)
	assert.False(t, status.Configured)
	assert.NotEmpty(t, status.Issues)
	assert.NotEmpty(t, status.DataDir)

	binary := writeExecutable(t)
	_, err = Configure(Options{ConfigPath: path, BinaryPath: binary})
	require.NoError(t, err)

	status, err = GetStatus(path)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.Equal(t, binary, status.ServerPath)
	assert.Empty(t, status.Issues)
}

func TestGetStatus_MissingBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	_, err := Configure(Options{ConfigPath: path, BinaryPath: "/does/not/exist"})
	require.NoError(t, err)

	status, err := GetStatus(path)
	require.NoError(t, err)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "not found")
}

func runSetup(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCommand()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	binary := writeExecutable(t)

	t.Run("declined", func(t *testing.T) {
		out, err := runSetup(t, "n\n", "client", "--config", path, "--binary", binary)
		require.NoError(t, err)
		assert.Contains(t, out, "cancelled")
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("auto confirm", func(t *testing.T) {
		_, err := runSetup(t, "", "client", "--config", path, "--binary", binary, "--data-dir", "/data/advisor", "--yes")
		require.NoError(t, err)

		cfg, err := LoadClientConfig(path)
		require.NoError(t, err)
		assert.Equal(t, binary, cfg.MCPServers[ServerName].Command)
		assert.Equal(t, "/data/advisor", cfg.MCPServers[ServerName].Env["BIOMARKER_DATA_DIR"])
	})

	t.Run("status", func(t *testing.T) {
		out, err := runSetup(t, "", "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Registered: yes")
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := runSetup(t, "", "frobnicate")
		assert.Error(t, err)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := runSetup(t, "", "status", "--colour")
		assert.Error(t, err)
	})
}
