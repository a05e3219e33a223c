package errors

import (
	"errors"
	"fmt"
)

// TunnelError is the base interface for all SDK errors.
type TunnelError interface {
	error
	IsTunnelError() bool
}

// Compile-time verification that all error types implement TunnelError.
var (
	_ TunnelError = (*ConnectError)(nil)
	_ TunnelError = (*AbortError)(nil)
	_ TunnelError = (*CommandError)(nil)
	_ TunnelError = (*ToolchainNotFoundError)(nil)
	_ TunnelError = (*DevServerError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates the tunnel socket is not connected.
	ErrNotConnected = errors.New("tunnel not connected")

	// ErrAlreadyStarted indicates Start was called more than once.
	ErrAlreadyStarted = errors.New("server already started")

	// ErrServerClosed indicates the server has been closed and cannot be reused.
	ErrServerClosed = errors.New("server closed: servers are single-use, create a new one")

	// ErrInvalidCapability indicates a registration with a nil or unnamed
	// descriptor, or a nil handler.
	ErrInvalidCapability = errors.New("invalid capability")

	// ErrNoDevices indicates no automation devices were discovered.
	ErrNoDevices = errors.New("no devices found")
)

// ConnectError indicates the initial tunnel dial failed.
type ConnectError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to tunnel at %s after %d attempt(s): %v",
		e.Endpoint, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsTunnelError implements TunnelError.
func (e *ConnectError) IsTunnelError() bool { return true }

// AbortError indicates the server terminated the tunnel with a fatal close
// code. The tunnel will not reconnect.
type AbortError struct {
	Code   int
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("tunnel aborted by server (code %d): %s", e.Code, e.Reason)
}

// IsTunnelError implements TunnelError.
func (e *AbortError) IsTunnelError() bool { return true }

// CommandError indicates an external automation command failed.
// Stderr preserves the command's diagnostic output.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Command, e.Err, e.Stderr)
	}

	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsTunnelError implements TunnelError.
func (e *CommandError) IsTunnelError() bool { return true }

// ToolchainNotFoundError indicates a platform toolchain binary was not found.
type ToolchainNotFoundError struct {
	Toolchain     string
	SearchedPaths []string
}

func (e *ToolchainNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in: %v", e.Toolchain, e.SearchedPaths)
}

// IsTunnelError implements TunnelError.
func (e *ToolchainNotFoundError) IsTunnelError() bool { return true }

// DevServerError indicates an unexpected response from the dev server.
type DevServerError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DevServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dev server request to %s failed: %v", e.URL, e.Err)
	}

	return fmt.Sprintf("dev server request to %s returned status %d", e.URL, e.StatusCode)
}

func (e *DevServerError) Unwrap() error {
	return e.Err
}

// IsTunnelError implements TunnelError.
func (e *DevServerError) IsTunnelError() bool { return true }
