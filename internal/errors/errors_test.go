package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectError(t *testing.T) {
	root := errors.New("dial failed")
	err := &ConnectError{
		Endpoint: "ws://localhost:8787/tunnel",
		Attempts: 3,
		Err:      root,
	}

	require.Equal(
		t,
		"failed to connect to tunnel at ws://localhost:8787/tunnel after 3 attempt(s): dial failed",
		err.Error(),
	)
	require.ErrorIs(t, err, root)
	require.True(t, err.IsTunnelError())
}

func TestAbortError(t *testing.T) {
	err := &AbortError{
		Code:   4003,
		Reason: "Multiple tunnel clients are not supported yet",
	}

	require.Equal(
		t,
		"tunnel aborted by server (code 4003): Multiple tunnel clients are not supported yet",
		err.Error(),
	)
	require.True(t, err.IsTunnelError())
}

func TestCommandError_WithStderr(t *testing.T) {
	root := errors.New("exit status 1")
	err := &CommandError{
		Command: "adb shell input tap 10 20",
		Stderr:  "error: device offline",
		Err:     root,
	}

	require.Equal(
		t,
		"adb shell input tap 10 20 failed: exit status 1: error: device offline",
		err.Error(),
	)
	require.ErrorIs(t, err, root)
	require.True(t, err.IsTunnelError())
}

func TestCommandError_WithoutStderr(t *testing.T) {
	root := errors.New("signal: killed")
	err := &CommandError{
		Command: "xcrun simctl list",
		Err:     root,
	}

	require.Equal(t, "xcrun simctl list failed: signal: killed", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsTunnelError())
}

func TestToolchainNotFoundError(t *testing.T) {
	err := &ToolchainNotFoundError{
		Toolchain:     "adb",
		SearchedPaths: []string{"$PATH", "/usr/local/bin/adb"},
	}

	require.Equal(t, "adb not found in: [$PATH /usr/local/bin/adb]", err.Error())
	require.True(t, err.IsTunnelError())
}

func TestDevServerError_WithUnderlyingError(t *testing.T) {
	root := errors.New("connection refused")
	err := &DevServerError{
		URL: "http://localhost:8081/status",
		Err: root,
	}

	require.Equal(
		t,
		"dev server request to http://localhost:8081/status failed: connection refused",
		err.Error(),
	)
	require.ErrorIs(t, err, root)
	require.True(t, err.IsTunnelError())
}

func TestDevServerError_WithStatusOnly(t *testing.T) {
	err := &DevServerError{
		URL:        "http://localhost:8081/reload",
		StatusCode: 503,
	}

	require.Equal(
		t,
		"dev server request to http://localhost:8081/reload returned status 503",
		err.Error(),
	)
	require.NoError(t, err.Unwrap())
	require.True(t, err.IsTunnelError())
}
