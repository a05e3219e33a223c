// Package wire defines the JSON-RPC 2.0 envelope and the close-code
// vocabulary spoken over the tunnel WebSocket.
package wire

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version carried by every envelope.
const Version = "2.0"

// Methods sent by the client to the server.
const (
	// MethodHandshake announces the client after every (re)connect.
	MethodHandshake = "handshake"

	// MethodRegisterTool, MethodRegisterPrompt, and MethodRegisterResource
	// mirror a local registration to the server. Params carry the
	// descriptor alone; handlers never leave the process.
	MethodRegisterTool     = "register_mcp_tool"
	MethodRegisterPrompt   = "register_mcp_prompt"
	MethodRegisterResource = "register_mcp_resource"
)

// Methods sent by the server to invoke local capabilities.
const (
	MethodCallTool     = "tools/call"
	MethodGetPrompt    = "prompts/get"
	MethodReadResource = "resources/read"
)

// JSON-RPC error codes.
const (
	CodeInvalidParams  = -32602
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// HandshakeParams is the payload of the handshake notification.
type HandshakeParams struct {
	ProjectRoot  string `json:"projectRoot"`
	DevServerURL string `json:"devServerUrl"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// MethodNotFound builds the error returned for unknown methods and for
// invocations of capabilities that were never registered.
func MethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found: " + method}
}

// InternalError wraps a handler failure. The message is the failure text
// itself so the server can surface it to the caller.
func InternalError(err error) *Error {
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

// InvalidParams reports request params that could not be decoded.
func InvalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params: " + err.Error()}
}

// Envelope is a JSON-RPC 2.0 message. The id is kept as raw JSON so that
// numeric and string ids echo back byte-for-byte.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// HasID reports whether the envelope carries a usable correlation id.
// A literal null id counts as absent.
func (e *Envelope) HasID() bool {
	return len(e.ID) > 0 && string(e.ID) != "null"
}

// IsRequest reports whether the envelope is an inbound request that
// requires a correlated response.
func (e *Envelope) IsRequest() bool {
	return e.Method != "" && e.HasID()
}

// IsNotification reports whether the envelope is a fire-and-forget call.
func (e *Envelope) IsNotification() bool {
	return e.Method != "" && !e.HasID()
}

// IsResponse reports whether the envelope answers an earlier request.
func (e *Envelope) IsResponse() bool {
	return e.Method == "" && e.HasID() && (e.Result != nil || e.Error != nil)
}

// Parse decodes a single envelope from raw frame data.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.JSONRPC != Version {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", env.JSONRPC)
	}

	return &env, nil
}

// NewRequest builds a request envelope with a marshaled params payload.
func NewRequest(id json.RawMessage, method string, params any) (*Envelope, error) {
	env, err := NewNotification(method, params)
	if err != nil {
		return nil, err
	}

	env.ID = id

	return env, nil
}

// NewNotification builds a method call without an id.
func NewNotification(method string, params any) (*Envelope, error) {
	env := &Envelope{JSONRPC: Version, Method: method}

	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}

		env.Params = data
	}

	return env, nil
}

// NewResponse builds a success response echoing the request id verbatim.
func NewResponse(id json.RawMessage, result any) (*Envelope, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	return &Envelope{JSONRPC: Version, ID: id, Result: data}, nil
}

// NewErrorResponse builds an error response echoing the request id verbatim.
func NewErrorResponse(id json.RawMessage, rpcErr *Error) *Envelope {
	return &Envelope{JSONRPC: Version, ID: id, Error: rpcErr}
}
