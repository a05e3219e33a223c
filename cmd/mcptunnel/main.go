// Command mcptunnel exposes local device, dev-server, and project
// capabilities to a remote control plane over a reverse WebSocket tunnel,
// and optionally to local MCP clients over stdio.
//
// Configuration comes from MCP_TUNNEL_* environment variables; flags
// override the environment. At least one of -endpoint and -stdio must be
// given.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"

	mcptunnel "github.com/wagiedev/mcp-tunnel-go"
	"github.com/wagiedev/mcp-tunnel-go/internal/devserver"
)

// version is stamped by the release build.
var version = "dev"

// config is the CLI configuration. Environment values load first; flags
// override them.
type config struct {
	// Endpoint is the tunnel websocket URL. ENV: MCP_TUNNEL_ENDPOINT
	Endpoint string `env:"MCP_TUNNEL_ENDPOINT"`

	// ProjectRoot is announced in the handshake. ENV: MCP_TUNNEL_PROJECT_ROOT
	ProjectRoot string `env:"MCP_TUNNEL_PROJECT_ROOT"`

	// DevServerURL is announced in the handshake and probed by the
	// dev-server tools. ENV: MCP_TUNNEL_DEV_SERVER_URL
	DevServerURL string `env:"MCP_TUNNEL_DEV_SERVER_URL,default=http://localhost:8081"`

	// ReconnectInterval spaces reconnect attempts.
	// ENV: MCP_TUNNEL_RECONNECT_INTERVAL
	ReconnectInterval time.Duration `env:"MCP_TUNNEL_RECONNECT_INTERVAL,default=3s"`

	// Verbose enables debug logging. ENV: MCP_TUNNEL_VERBOSE
	Verbose bool `env:"MCP_TUNNEL_VERBOSE,default=false"`

	// ADBPath, XcrunPath, and IDBPath pin toolchain binaries instead of
	// discovering them. Env-only.
	ADBPath   string `env:"MCP_TUNNEL_ADB_PATH"`
	XcrunPath string `env:"MCP_TUNNEL_XCRUN_PATH"`
	IDBPath   string `env:"MCP_TUNNEL_IDB_PATH"`

	// Async and Stdio are flag-only.
	Async bool
	Stdio bool
}

func loadConfig(args []string) (config, error) {
	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment config: %w", err)
	}

	fs := flag.NewFlagSet("mcptunnel", flag.ContinueOnError)
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "tunnel websocket endpoint (ws:// or wss://)")
	fs.StringVar(&cfg.ProjectRoot, "project-root", cfg.ProjectRoot, "project root announced in the handshake (defaults to the working directory)")
	fs.StringVar(&cfg.DevServerURL, "dev-server-url", cfg.DevServerURL, "dev server base URL")
	fs.DurationVar(&cfg.ReconnectInterval, "reconnect-interval", cfg.ReconnectInterval, "delay between tunnel reconnect attempts")
	fs.BoolVar(&cfg.Async, "async", false, "do not wait for the first tunnel dial; connect in the background")
	fs.BoolVar(&cfg.Stdio, "stdio", false, "also serve MCP to a local client over stdio")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.ProjectRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.ProjectRoot = wd
		}
	}

	return cfg, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mcptunnel: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if cfg.Endpoint == "" && !cfg.Stdio {
		return fmt.Errorf("nothing to serve: set -endpoint (or MCP_TUNNEL_ENDPOINT) and/or -stdio")
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	// Logs go to stderr so stdio MCP framing on stdout stays clean.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// A fatal close from the control plane lands here and ends the process.
	abort := make(chan string, 1)

	var servers []mcptunnel.Server

	if cfg.Endpoint != "" {
		opts := []mcptunnel.Option{
			mcptunnel.WithLogger(logger),
			mcptunnel.WithProjectRoot(cfg.ProjectRoot),
			mcptunnel.WithDevServerURL(cfg.DevServerURL),
			mcptunnel.WithReconnectInterval(cfg.ReconnectInterval),
			mcptunnel.WithAbortHandler(func(reason string, code int) {
				select {
				case abort <- fmt.Sprintf("%s (code %d)", reason, code):
				default:
				}
			}),
		}

		if cfg.Async {
			opts = append(opts, mcptunnel.WithAsyncConnect())
		}

		servers = append(servers, mcptunnel.NewTunnelServer(cfg.Endpoint, opts...))
	}

	if cfg.Stdio {
		servers = append(servers, mcptunnel.NewDirectServer(
			mcptunnel.WithLogger(logger),
			mcptunnel.WithServerInfo("mcp-tunnel", version),
		))
	}

	server := mcptunnel.NewCompositeServer(servers...)

	dev := devserver.New(cfg.DevServerURL, logger)
	if err := registerBuiltins(server, cfg, dev, logger); err != nil {
		return fmt.Errorf("register built-in capabilities: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("mcptunnel running",
		"version", version, "endpoint", cfg.Endpoint, "stdio", cfg.Stdio, "project_root", cfg.ProjectRoot)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")

		return server.Close()

	case reason := <-abort:
		_ = server.Close()

		return fmt.Errorf("tunnel terminated by server: %s", reason)
	}
}
