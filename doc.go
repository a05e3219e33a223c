// Package mcptunnel exposes local MCP capabilities to a remote control plane
// over a reverse WebSocket tunnel.
//
// A TunnelServer dials out to a tunnel endpoint, announces the capabilities
// registered against it (tools, prompts, and resources), and services
// invocations the remote side sends back over the same connection. Because
// the client dials out, no inbound port has to be opened on the developer's
// machine. The connection self-heals: on any non-fatal disconnect the tunnel
// reconnects on a fixed interval and replays every registration so the remote
// side always holds the complete capability set.
//
// # Basic Usage
//
// Create a tunnel server, register capabilities, and start it:
//
//	server := mcptunnel.NewTunnelServer("wss://tunnel.example.dev/ws",
//	    mcptunnel.WithProjectRoot("/work/app"),
//	    mcptunnel.WithLogger(slog.Default()),
//	)
//	defer server.Close()
//
//	tool := mcptunnel.NewTool("take_screenshot", "Capture the device screen",
//	    mcptunnel.SimpleSchema(map[string]string{"deviceId": "string"}))
//
//	err := server.RegisterTool(tool, func(ctx context.Context, req *mcptunnel.CallToolRequest) (*mcptunnel.CallToolResult, error) {
//	    args, err := mcptunnel.ParseArguments(req)
//	    if err != nil {
//	        return nil, err
//	    }
//	    // capture...
//	    return mcptunnel.TextResult("saved to screen.png"), nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Registration order is preserved and re-registering a name updates the
// capability in place, so handlers can be swapped at runtime without
// disturbing the announced ordering.
//
// # Serving Local Clients
//
// DirectServer hosts the same capabilities for an MCP client on stdio (or any
// MCP transport) instead of a remote tunnel, and CompositeServer fans
// registrations out to several servers at once:
//
//	tunnel := mcptunnel.NewTunnelServer(endpoint)
//	local := mcptunnel.NewDirectServer()
//	server := mcptunnel.NewCompositeServer(tunnel, local)
//
//	// Registrations now reach both the tunnel and local MCP clients.
//	_ = server.RegisterTool(tool, handler)
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	server := mcptunnel.NewTunnelServer(endpoint, mcptunnel.WithLogger(logger))
//
// # Error Handling
//
// The package provides typed errors for different failure scenarios:
//
//	if err := server.Start(ctx); err != nil {
//	    var connErr *mcptunnel.ConnectError
//	    if errors.As(err, &connErr) {
//	        log.Fatalf("tunnel unreachable after %d attempts: %v", connErr.Attempts, connErr.Err)
//	    }
//	    log.Fatal(err)
//	}
//
// When the remote side terminates the tunnel with a fatal close code (for
// example because another client connected), the tunnel stops reconnecting
// and reports an AbortError; use WithAbortHandler to observe the abort as it
// happens.
package mcptunnel
