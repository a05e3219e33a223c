// Package registry stores capability descriptors together with their local
// handlers, preserving registration order for replay.
package registry

import (
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Registry is an order-preserving capability store. Tools and prompts are
// identified by name, resources by URI. Re-registering the same identity
// replaces the record wholesale but keeps its original position, so replay
// order is stable across re-registrations.
type Registry struct {
	mu        sync.RWMutex
	tools     []*toolEntry
	prompts   []*promptEntry
	resources []*resourceEntry
}

type toolEntry struct {
	def     *mcp.Tool
	handler mcp.ToolHandler
}

type promptEntry struct {
	def     *mcp.Prompt
	handler mcp.PromptHandler
}

type resourceEntry struct {
	def     *mcp.Resource
	handler mcp.ResourceHandler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// PutTool stores or replaces a tool under its name.
func (r *Registry) PutTool(def *mcp.Tool, handler mcp.ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.tools {
		if e.def.Name == def.Name {
			e.def = def
			e.handler = handler

			return
		}
	}

	r.tools = append(r.tools, &toolEntry{def: def, handler: handler})
}

// PutPrompt stores or replaces a prompt under its name.
func (r *Registry) PutPrompt(def *mcp.Prompt, handler mcp.PromptHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.prompts {
		if e.def.Name == def.Name {
			e.def = def
			e.handler = handler

			return
		}
	}

	r.prompts = append(r.prompts, &promptEntry{def: def, handler: handler})
}

// PutResource stores or replaces a resource under its URI.
func (r *Registry) PutResource(def *mcp.Resource, handler mcp.ResourceHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.resources {
		if e.def.URI == def.URI {
			e.def = def
			e.handler = handler

			return
		}
	}

	r.resources = append(r.resources, &resourceEntry{def: def, handler: handler})
}

// ToolHandler returns the handler registered under the given tool name.
func (r *Registry) ToolHandler(name string) (mcp.ToolHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.tools {
		if e.def.Name == name {
			return e.handler, true
		}
	}

	return nil, false
}

// PromptHandler returns the handler registered under the given prompt name.
func (r *Registry) PromptHandler(name string) (mcp.PromptHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.prompts {
		if e.def.Name == name {
			return e.handler, true
		}
	}

	return nil, false
}

// ResourceHandler returns the handler registered under the given resource
// URI. Matching is exact; the registry is expected to stay small enough
// that a linear scan is fine.
func (r *Registry) ResourceHandler(uri string) (mcp.ResourceHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.resources {
		if e.def.URI == uri {
			return e.handler, true
		}
	}

	return nil, false
}

// Tools returns descriptor snapshots in registration order. The returned
// structs are copies; mutating them does not touch the registry.
func (r *Registry) Tools() []*mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*mcp.Tool, 0, len(r.tools))

	for _, e := range r.tools {
		c := *e.def
		out = append(out, &c)
	}

	return out
}

// Prompts returns descriptor snapshots in registration order.
func (r *Registry) Prompts() []*mcp.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*mcp.Prompt, 0, len(r.prompts))

	for _, e := range r.prompts {
		c := *e.def
		out = append(out, &c)
	}

	return out
}

// Resources returns descriptor snapshots in registration order.
func (r *Registry) Resources() []*mcp.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*mcp.Resource, 0, len(r.resources))

	for _, e := range r.resources {
		c := *e.def
		out = append(out, &c)
	}

	return out
}
