package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every MCP_TUNNEL_* variable so ambient configuration
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		"MCP_TUNNEL_ENDPOINT",
		"MCP_TUNNEL_PROJECT_ROOT",
		"MCP_TUNNEL_DEV_SERVER_URL",
		"MCP_TUNNEL_RECONNECT_INTERVAL",
		"MCP_TUNNEL_VERBOSE",
		"MCP_TUNNEL_ADB_PATH",
		"MCP_TUNNEL_XCRUN_PATH",
		"MCP_TUNNEL_IDB_PATH",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.Endpoint)
	assert.Equal(t, "http://localhost:8081", cfg.DevServerURL)
	assert.Equal(t, 3*time.Second, cfg.ReconnectInterval)
	assert.False(t, cfg.Verbose)
	assert.False(t, cfg.Async)
	assert.False(t, cfg.Stdio)
	assert.NotEmpty(t, cfg.ProjectRoot, "project root should fall back to the working directory")
}

func TestLoadConfig_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_TUNNEL_ENDPOINT", "wss://tunnel.example.com/ws")
	t.Setenv("MCP_TUNNEL_PROJECT_ROOT", "/srv/app")
	t.Setenv("MCP_TUNNEL_DEV_SERVER_URL", "http://localhost:19000")
	t.Setenv("MCP_TUNNEL_RECONNECT_INTERVAL", "10s")
	t.Setenv("MCP_TUNNEL_VERBOSE", "true")

	cfg, err := loadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "wss://tunnel.example.com/ws", cfg.Endpoint)
	assert.Equal(t, "/srv/app", cfg.ProjectRoot)
	assert.Equal(t, "http://localhost:19000", cfg.DevServerURL)
	assert.Equal(t, 10*time.Second, cfg.ReconnectInterval)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_TUNNEL_ENDPOINT", "wss://env.example.com/ws")

	cfg, err := loadConfig([]string{
		"-endpoint", "wss://flag.example.com/ws",
		"-reconnect-interval", "500ms",
		"-stdio",
		"-async",
	})
	require.NoError(t, err)

	assert.Equal(t, "wss://flag.example.com/ws", cfg.Endpoint)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectInterval)
	assert.True(t, cfg.Stdio)
	assert.True(t, cfg.Async)
}

func TestRun_RequiresEndpointOrStdio(t *testing.T) {
	clearEnv(t)

	err := run(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to serve")
}
