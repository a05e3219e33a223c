package mcptunnel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/mcp-tunnel-go/internal/errors"
	"github.com/wagiedev/mcp-tunnel-go/internal/registry"
	"github.com/wagiedev/mcp-tunnel-go/internal/socket"
	"github.com/wagiedev/mcp-tunnel-go/internal/wire"
)

// Compile-time verification that TunnelServer implements Server.
var _ Server = (*TunnelServer)(nil)

// tunnelConn is the slice of socket.Socket the proxy depends on, split out
// so tests can substitute an in-memory connection.
type tunnelConn interface {
	Start(ctx context.Context) error
	Send(ctx context.Context, env *wire.Envelope) error
	AddListener(l socket.Listener)
	Close() error
}

// TunnelServer exposes locally registered capabilities to a remote control
// plane over a reverse WebSocket tunnel.
//
// The server owns a private registry of descriptor+handler pairs. Each
// registration is mirrored to the control plane as a register_mcp_*
// notification; on every (re)connect the full registry is replayed after
// the handshake, so the remote side can always rebuild its view from
// scratch. Incoming tools/call, prompts/get, and resources/read requests
// run the matching local handler and send back exactly one correlated
// response.
//
// The tunnel reconnects on a fixed cadence after network drops and stays
// down for good when the server closes it with a fatal code (see
// WithAbortHandler).
//
// Lifecycle: single-use. After Close(), create a new server.
type TunnelServer struct {
	log  *slog.Logger
	opts *Options
	conn tunnelConn
	reg  *registry.Registry

	// sendMu serializes registry mutation + announcement so a replay and a
	// concurrent registration cannot interleave or double-send a record.
	sendMu    sync.Mutex
	connected bool

	mu      sync.Mutex
	started bool
	closed  bool

	abortOnce sync.Once
}

// NewTunnelServer creates a tunnel server for the given ws:// or wss://
// endpoint. The connection is not opened until Start.
func NewTunnelServer(endpoint string, opts ...Option) *TunnelServer {
	options := applyOptions(opts)

	logger := options.Logger
	if logger == nil {
		logger = NopLogger()
	}

	clientID := options.ClientID
	if clientID == "" {
		clientID = ulid.Make().String()
	}

	conn := socket.New(socket.Config{
		Endpoint: endpoint,
		Handshake: wire.HandshakeParams{
			ProjectRoot:  options.ProjectRoot,
			DevServerURL: options.DevServerURL,
		},
		Header:            options.Header,
		ClientID:          clientID,
		ReconnectInterval: options.ReconnectInterval,
		DialTimeout:       options.DialTimeout,
		DialAttempts:      options.DialAttempts,
		AsyncConnect:      options.AsyncConnect,
		Logger:            logger,
	})

	return newTunnelServer(conn, options, logger)
}

// newTunnelServer wires a server to any tunnelConn.
func newTunnelServer(conn tunnelConn, options *Options, logger *slog.Logger) *TunnelServer {
	s := &TunnelServer{
		log:  logger.With("component", "tunnel"),
		opts: options,
		conn: conn,
		reg:  registry.New(),
	}

	conn.AddListener(&tunnelListener{server: s})

	return s
}

// tunnelListener adapts socket events onto the server without exposing the
// listener methods on the public API.
type tunnelListener struct {
	server *TunnelServer
}

func (l *tunnelListener) OnConnectionChange(connected bool) {
	l.server.handleConnectionChange(connected)
}

func (l *tunnelListener) OnMessage(env *wire.Envelope) {
	l.server.handleMessage(env)
}

func (l *tunnelListener) OnServerAbort(reason string, code wire.CloseCode) {
	l.server.handleServerAbort(reason, code)
}

// Start opens the tunnel. See WithDialAttempts and WithAsyncConnect for
// how the initial dial is bounded.
func (s *TunnelServer) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return errors.ErrServerClosed
	}

	if s.started {
		s.mu.Unlock()

		return errors.ErrAlreadyStarted
	}

	s.started = true
	s.mu.Unlock()

	s.log.Debug("Starting tunnel server")

	return s.conn.Start(ctx)
}

// Close tears the tunnel down. In-flight handlers run to completion; their
// responses fail to send and are logged, not raised. Safe to call multiple
// times.
func (s *TunnelServer) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	s.log.Debug("Closing tunnel server")

	return s.conn.Close()
}

// RegisterTool adds or replaces a tool under its name. When the tunnel is
// connected the registration is pushed immediately; otherwise it is held
// for the next replay.
func (s *TunnelServer) RegisterTool(tool *Tool, handler ToolHandler) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("%w: tool descriptor must have a name", errors.ErrInvalidCapability)
	}

	if handler == nil {
		return fmt.Errorf("%w: tool %q has a nil handler", errors.ErrInvalidCapability, tool.Name)
	}

	if s.isClosed() {
		return errors.ErrServerClosed
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.reg.PutTool(tool, handler)
	s.announceLocked(wire.MethodRegisterTool, tool)

	return nil
}

// RegisterPrompt adds or replaces a prompt under its name.
func (s *TunnelServer) RegisterPrompt(prompt *Prompt, handler PromptHandler) error {
	if prompt == nil || prompt.Name == "" {
		return fmt.Errorf("%w: prompt descriptor must have a name", errors.ErrInvalidCapability)
	}

	if handler == nil {
		return fmt.Errorf("%w: prompt %q has a nil handler", errors.ErrInvalidCapability, prompt.Name)
	}

	if s.isClosed() {
		return errors.ErrServerClosed
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.reg.PutPrompt(prompt, handler)
	s.announceLocked(wire.MethodRegisterPrompt, prompt)

	return nil
}

// RegisterResource adds or replaces a resource under its URI.
func (s *TunnelServer) RegisterResource(resource *Resource, handler ResourceHandler) error {
	if resource == nil || resource.URI == "" {
		return fmt.Errorf("%w: resource descriptor must have a URI", errors.ErrInvalidCapability)
	}

	if handler == nil {
		return fmt.Errorf("%w: resource %q has a nil handler", errors.ErrInvalidCapability, resource.URI)
	}

	if s.isClosed() {
		return errors.ErrServerClosed
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.reg.PutResource(resource, handler)
	s.announceLocked(wire.MethodRegisterResource, resource)

	return nil
}

// Tools returns descriptor snapshots in registration order.
func (s *TunnelServer) Tools() []*Tool {
	return s.reg.Tools()
}

// Prompts returns descriptor snapshots in registration order.
func (s *TunnelServer) Prompts() []*Prompt {
	return s.reg.Prompts()
}

// Resources returns descriptor snapshots in registration order.
func (s *TunnelServer) Resources() []*Resource {
	return s.reg.Resources()
}

// announceLocked pushes one registration when connected; while
// disconnected the record simply waits for the next replay. Push failures
// are logged, never escalated: the replay on reconnect covers them.
// Caller must hold sendMu.
func (s *TunnelServer) announceLocked(method string, descriptor any) {
	if !s.connected {
		return
	}

	env, err := wire.NewNotification(method, descriptor)
	if err != nil {
		s.log.Error("Failed to encode registration", "method", method, "error", err)

		return
	}

	if err := s.conn.Send(context.Background(), env); err != nil {
		s.log.Warn("Failed to push registration", "method", method, "error", err)
	}
}

// handleConnectionChange tracks connectivity and replays the registry on
// every transition into connected. Runs on the socket's event goroutine
// right after the handshake, so the control plane always sees a complete
// snapshot before any new registrations trickle in.
func (s *TunnelServer) handleConnectionChange(connected bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.connected = connected

	if !connected {
		s.log.Debug("Tunnel disconnected, holding registrations for replay")

		return
	}

	s.replayLocked()
}

// replayLocked re-announces every record: tools first, then prompts, then
// resources, in registration order within each kind. Re-sending a
// registration is idempotent on the server side, so replaying after every
// connect is safe. Caller must hold sendMu.
func (s *TunnelServer) replayLocked() {
	tools := s.reg.Tools()
	prompts := s.reg.Prompts()
	resources := s.reg.Resources()

	s.log.Info("Replaying capability registrations",
		"tools", len(tools), "prompts", len(prompts), "resources", len(resources))

	for _, t := range tools {
		s.announceLocked(wire.MethodRegisterTool, t)
	}

	for _, p := range prompts {
		s.announceLocked(wire.MethodRegisterPrompt, p)
	}

	for _, r := range resources {
		s.announceLocked(wire.MethodRegisterResource, r)
	}
}

// handleMessage routes inbound envelopes. Only requests are acted on;
// notifications and stray responses are logged and dropped. The proxy
// never sends requests of its own, so there is nothing to correlate
// responses against.
func (s *TunnelServer) handleMessage(env *wire.Envelope) {
	if !env.IsRequest() {
		if env.IsNotification() {
			s.log.Debug("Ignoring notification", "method", env.Method)
		} else {
			s.log.Debug("Ignoring unexpected response envelope")
		}

		return
	}

	// Run the handler on its own goroutine so a slow capability never
	// blocks the socket's read loop.
	go s.dispatch(env)
}

// dispatch runs one request to completion: exactly one response goes back,
// error or result, echoing the request id verbatim.
func (s *TunnelServer) dispatch(env *wire.Envelope) {
	result, rpcErr := s.invoke(env)

	var resp *wire.Envelope

	if rpcErr != nil {
		resp = wire.NewErrorResponse(env.ID, rpcErr)
	} else {
		var err error

		resp, err = wire.NewResponse(env.ID, result)
		if err != nil {
			s.log.Error("Failed to encode result", "method", env.Method, "error", err)

			resp = wire.NewErrorResponse(env.ID, wire.InternalError(err))
		}
	}

	if err := s.conn.Send(context.Background(), resp); err != nil {
		s.log.Warn("Failed to send response", "method", env.Method, "error", err)
	}
}

// invoke routes a request to its handler and converts every failure mode
// into a JSON-RPC error: unknown methods and unregistered capabilities to
// -32601, undecodable params to -32602, handler errors and panics to
// -32603.
func (s *TunnelServer) invoke(env *wire.Envelope) (result any, rpcErr *wire.Error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Handler panicked", "method", env.Method, "panic", r)

			result = nil
			rpcErr = wire.InternalError(fmt.Errorf("handler panic: %v", r))
		}
	}()

	ctx := context.Background()

	switch env.Method {
	case wire.MethodCallTool:
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}

		if err := unmarshalParams(env.Params, &params); err != nil {
			return nil, wire.InvalidParams(err)
		}

		handler, ok := s.reg.ToolHandler(params.Name)
		if !ok {
			return nil, wire.MethodNotFound(env.Method)
		}

		args := params.Arguments
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}

		res, err := handler(ctx, &mcp.CallToolRequest{
			Params: &mcp.CallToolParamsRaw{Name: params.Name, Arguments: args},
		})
		if err != nil {
			return nil, wire.InternalError(err)
		}

		return res, nil

	case wire.MethodGetPrompt:
		var params struct {
			Name      string            `json:"name"`
			Arguments map[string]string `json:"arguments"`
		}

		if err := unmarshalParams(env.Params, &params); err != nil {
			return nil, wire.InvalidParams(err)
		}

		handler, ok := s.reg.PromptHandler(params.Name)
		if !ok {
			return nil, wire.MethodNotFound(env.Method)
		}

		if params.Arguments == nil {
			params.Arguments = map[string]string{}
		}

		res, err := handler(ctx, &mcp.GetPromptRequest{
			Params: &mcp.GetPromptParams{Name: params.Name, Arguments: params.Arguments},
		})
		if err != nil {
			return nil, wire.InternalError(err)
		}

		return res, nil

	case wire.MethodReadResource:
		var params struct {
			URI string `json:"uri"`
		}

		if err := unmarshalParams(env.Params, &params); err != nil {
			return nil, wire.InvalidParams(err)
		}

		handler, ok := s.reg.ResourceHandler(params.URI)
		if !ok {
			return nil, wire.MethodNotFound(env.Method)
		}

		res, err := handler(ctx, &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: params.URI},
		})
		if err != nil {
			return nil, wire.InternalError(err)
		}

		return res, nil

	default:
		return nil, wire.MethodNotFound(env.Method)
	}
}

// handleServerAbort marks the server closed and surfaces the abort to the
// owner exactly once.
func (s *TunnelServer) handleServerAbort(reason string, code wire.CloseCode) {
	s.log.Warn("Tunnel terminated by server", "code", int(code), "reason", reason)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.opts.AbortHandler != nil {
		s.abortOnce.Do(func() {
			s.opts.AbortHandler(reason, int(code))
		})
	}
}

func (s *TunnelServer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// unmarshalParams decodes request params, treating an absent payload as an
// empty object.
func unmarshalParams(data json.RawMessage, v any) error {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	return json.Unmarshal(data, v)
}
