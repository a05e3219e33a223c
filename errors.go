package mcptunnel

import "github.com/wagiedev/mcp-tunnel-go/internal/errors"

// Re-export error types from internal package

// ConnectError indicates the initial tunnel dial failed.
type ConnectError = errors.ConnectError

// AbortError indicates the server terminated the tunnel with a fatal
// close code.
type AbortError = errors.AbortError

// CommandError indicates an external automation command failed.
type CommandError = errors.CommandError

// ToolchainNotFoundError indicates a platform toolchain binary was not found.
type ToolchainNotFoundError = errors.ToolchainNotFoundError

// DevServerError indicates an unexpected response from the dev server.
type DevServerError = errors.DevServerError

// TunnelError is the base interface for all SDK errors.
type TunnelError = errors.TunnelError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates the tunnel socket is not connected.
	ErrNotConnected = errors.ErrNotConnected

	// ErrAlreadyStarted indicates Start was called more than once.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrServerClosed indicates the server has been closed and cannot be
	// reused.
	ErrServerClosed = errors.ErrServerClosed

	// ErrInvalidCapability indicates a registration with a nil or unnamed
	// descriptor, or a nil handler.
	ErrInvalidCapability = errors.ErrInvalidCapability

	// ErrNoDevices indicates no automation devices were discovered.
	ErrNoDevices = errors.ErrNoDevices
)
