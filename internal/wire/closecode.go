package wire

import "fmt"

// CloseCode is a WebSocket close status sent by the tunnel server.
type CloseCode int

// Close codes the server uses to end a tunnel.
const (
	// ClosePolicyViolation is the standard 1008 status.
	ClosePolicyViolation CloseCode = 1008

	// CloseUnknownError covers server failures with no better code.
	CloseUnknownError CloseCode = 4000

	// CloseServerShutdown signals an orderly server restart.
	CloseServerShutdown CloseCode = 4001

	// CloseClientBanned signals this client may never reconnect.
	CloseClientBanned CloseCode = 4002

	// CloseMultipleClients signals a second client dialed the same tunnel.
	CloseMultipleClients CloseCode = 4003

	// CloseStaleClient signals the server considers this client defunct.
	CloseStaleClient CloseCode = 4004
)

// Fatal reports whether the code terminates the tunnel for good.
// Fatal closes never trigger a reconnect attempt.
func (c CloseCode) Fatal() bool {
	switch c {
	case ClosePolicyViolation, CloseClientBanned, CloseMultipleClients, CloseStaleClient:
		return true
	default:
		return false
	}
}

// Reason returns the stable human-readable text for a close code.
// Callers surface these to users, so the wording does not change between
// releases.
func (c CloseCode) Reason() string {
	switch c {
	case ClosePolicyViolation:
		return "Policy violation"
	case CloseUnknownError:
		return "Unknown server error"
	case CloseServerShutdown:
		return "Server is shutting down"
	case CloseClientBanned:
		return "Client is banned from the tunnel server"
	case CloseMultipleClients:
		return "Multiple tunnel clients are not supported yet"
	case CloseStaleClient:
		return "Client is stale and has been replaced"
	default:
		return fmt.Sprintf("Connection closed with code %d", int(c))
	}
}
