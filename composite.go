package mcptunnel

import (
	"context"
	stderrors "errors"
	"sync"
)

// Compile-time verification that CompositeServer implements Server.
var _ Server = (*CompositeServer)(nil)

// CompositeServer fans registrations and lifecycle calls out to several
// capability hosts at once, e.g. a TunnelServer for the control plane plus
// a DirectServer for local stdio clients.
//
// The composite holds no capability state of its own. Registrations are
// forwarded to every child in order; a child's failure never skips the
// remaining children, and all failures are reported together. Start and
// Close run the children concurrently and likewise aggregate every error.
type CompositeServer struct {
	servers []Server
}

// NewCompositeServer creates a composite over the given servers. An empty
// composite is a valid no-op.
func NewCompositeServer(servers ...Server) *CompositeServer {
	return &CompositeServer{servers: servers}
}

// RegisterTool registers the tool with every child server.
func (c *CompositeServer) RegisterTool(tool *Tool, handler ToolHandler) error {
	errs := make([]error, 0, len(c.servers))

	for _, srv := range c.servers {
		if err := srv.RegisterTool(tool, handler); err != nil {
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

// RegisterPrompt registers the prompt with every child server.
func (c *CompositeServer) RegisterPrompt(prompt *Prompt, handler PromptHandler) error {
	errs := make([]error, 0, len(c.servers))

	for _, srv := range c.servers {
		if err := srv.RegisterPrompt(prompt, handler); err != nil {
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

// RegisterResource registers the resource with every child server.
func (c *CompositeServer) RegisterResource(resource *Resource, handler ResourceHandler) error {
	errs := make([]error, 0, len(c.servers))

	for _, srv := range c.servers {
		if err := srv.RegisterResource(resource, handler); err != nil {
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

// Start starts every child concurrently. All failures are aggregated; one
// child failing never hides another's error.
func (c *CompositeServer) Start(ctx context.Context) error {
	return c.each(func(srv Server) error {
		return srv.Start(ctx)
	})
}

// Close closes every child concurrently, aggregating all failures.
func (c *CompositeServer) Close() error {
	return c.each(func(srv Server) error {
		return srv.Close()
	})
}

func (c *CompositeServer) each(fn func(Server) error) error {
	errs := make([]error, len(c.servers))

	var wg sync.WaitGroup

	for i, srv := range c.servers {
		wg.Go(func() {
			errs[i] = fn(srv)
		})
	}

	wg.Wait()

	return stderrors.Join(errs...)
}
