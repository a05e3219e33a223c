package mcptunnel

import "context"

// Server is the registration surface shared by every capability host.
//
// Implementations pair serializable capability descriptors with local
// handler functions and expose them to some consumer: TunnelServer mirrors
// registrations to a remote control plane over a reverse WebSocket,
// DirectServer serves them to a local MCP client, and CompositeServer fans
// registrations out to several hosts at once.
//
// Registration works before and after Start. Handlers never leave the
// process; only descriptors are announced to consumers.
//
// Lifecycle: servers are single-use. After Close(), create a new one.
//
// Example usage:
//
//	server := mcptunnel.NewTunnelServer("ws://localhost:9310/tunnel",
//	    mcptunnel.WithProjectRoot("/work/app"),
//	)
//	defer server.Close()
//
//	err := server.RegisterTool(
//	    mcptunnel.NewTool("echo", "Echoes its input back",
//	        mcptunnel.SimpleSchema(map[string]string{"text": "string"})),
//	    func(ctx context.Context, req *mcptunnel.CallToolRequest) (*mcptunnel.CallToolResult, error) {
//	        args, err := mcptunnel.ParseArguments(req)
//	        if err != nil {
//	            return nil, err
//	        }
//	        text, _ := args["text"].(string)
//
//	        return mcptunnel.TextResult(text), nil
//	    },
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Server interface {
	// RegisterTool adds or replaces a tool under its name.
	RegisterTool(tool *Tool, handler ToolHandler) error

	// RegisterPrompt adds or replaces a prompt under its name.
	RegisterPrompt(prompt *Prompt, handler PromptHandler) error

	// RegisterResource adds or replaces a resource under its URI.
	RegisterResource(resource *Resource, handler ResourceHandler) error

	// Start makes the server's capabilities available to its consumer.
	Start(ctx context.Context) error

	// Close shuts the server down. Safe to call multiple times.
	Close() error
}
