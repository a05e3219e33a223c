package mcptunnel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/mcp-tunnel-go/internal/errors"
)

// Compile-time verification that DirectServer implements Server.
var _ Server = (*DirectServer)(nil)

// DirectServer hosts capabilities for a local MCP client instead of a remote
// tunnel endpoint. It wraps an MCP server and serves it over a transport
// (stdio by default), so the same tools, prompts, and resources registered
// against a TunnelServer can be exposed to editors and CLIs that speak MCP
// directly.
//
// Like TunnelServer, a DirectServer is single-use: once closed it cannot be
// restarted.
type DirectServer struct {
	log       *slog.Logger
	server    *mcp.Server
	transport mcp.Transport

	eg *errgroup.Group

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	closed  bool
}

// NewDirectServer creates a local capability server.
//
// By default it identifies itself as "mcp-tunnel"/"dev" and serves over
// stdio; use WithServerInfo and WithMCPTransport to override.
func NewDirectServer(opts ...Option) *DirectServer {
	options := applyOptions(opts)

	logger := options.Logger
	if logger == nil {
		logger = NopLogger()
	}

	name := options.ServerName
	if name == "" {
		name = "mcp-tunnel"
	}
	version := options.ServerVersion
	if version == "" {
		version = "dev"
	}

	transport := options.MCPTransport
	if transport == nil {
		transport = &mcp.StdioTransport{}
	}

	return &DirectServer{
		log:       logger.With("component", "direct"),
		server:    mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		transport: transport,
	}
}

// RegisterTool adds a tool. Registration is accepted before or after Start;
// connected clients are notified of list changes by the underlying MCP
// server.
func (s *DirectServer) RegisterTool(tool *Tool, handler ToolHandler) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("%w: tool must have a name", errors.ErrInvalidCapability)
	}
	if handler == nil {
		return fmt.Errorf("%w: tool %q has no handler", errors.ErrInvalidCapability, tool.Name)
	}
	if s.isClosed() {
		return errors.ErrServerClosed
	}

	// The MCP server requires an input schema on every tool; default to an
	// unconstrained object for tools registered without one.
	if tool.InputSchema == nil {
		t := *tool
		t.InputSchema = &Schema{Type: "object"}
		tool = &t
	}

	s.server.AddTool(tool, handler)
	s.log.Debug("Registered tool", "name", tool.Name)

	return nil
}

// RegisterPrompt adds a prompt.
func (s *DirectServer) RegisterPrompt(prompt *Prompt, handler PromptHandler) error {
	if prompt == nil || prompt.Name == "" {
		return fmt.Errorf("%w: prompt must have a name", errors.ErrInvalidCapability)
	}
	if handler == nil {
		return fmt.Errorf("%w: prompt %q has no handler", errors.ErrInvalidCapability, prompt.Name)
	}
	if s.isClosed() {
		return errors.ErrServerClosed
	}

	s.server.AddPrompt(prompt, handler)
	s.log.Debug("Registered prompt", "name", prompt.Name)

	return nil
}

// RegisterResource adds a resource.
func (s *DirectServer) RegisterResource(resource *Resource, handler ResourceHandler) error {
	if resource == nil || resource.URI == "" {
		return fmt.Errorf("%w: resource must have a URI", errors.ErrInvalidCapability)
	}
	if handler == nil {
		return fmt.Errorf("%w: resource %q has no handler", errors.ErrInvalidCapability, resource.URI)
	}
	if s.isClosed() {
		return errors.ErrServerClosed
	}

	s.server.AddResource(resource, handler)
	s.log.Debug("Registered resource", "uri", resource.URI)

	return nil
}

// Start begins serving the MCP transport in the background and returns once
// the serve loop is running. The loop lives until Close or until the client
// disconnects.
func (s *DirectServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrServerClosed
	}
	if s.started {
		return errors.ErrAlreadyStarted
	}
	s.started = true

	// Run the serve loop on a background-derived context rather than the
	// caller's ctx: the caller's ctx may carry an initialization timeout,
	// and the server should keep serving until explicitly closed.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.eg, runCtx = errgroup.WithContext(runCtx)

	s.eg.Go(func() error {
		err := s.server.Run(runCtx, s.transport)
		if err != nil && runCtx.Err() == nil {
			s.log.Error("MCP serve loop ended", "error", err)

			return err
		}

		return nil
	})

	s.log.Info("Direct server started")

	return nil
}

// Close stops the serve loop and waits for it to exit. It returns the loop's
// error if it ended abnormally. Close is idempotent.
func (s *DirectServer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}
	s.closed = true
	cancel := s.cancel
	eg := s.eg
	s.mu.Unlock()

	s.log.Debug("Closing direct server")

	if cancel != nil {
		cancel()
	}
	if eg != nil {
		if err := eg.Wait(); err != nil {
			return fmt.Errorf("serve loop: %w", err)
		}
	}

	return nil
}

func (s *DirectServer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
