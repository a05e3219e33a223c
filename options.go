package mcptunnel

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Options configures tunnel and direct servers. Most callers use the
// With* functional options instead of building this struct directly.
type Options struct {
	// Logger receives debug, info, warn, and error output.
	// Nil disables logging.
	Logger *slog.Logger

	// ProjectRoot is announced in the tunnel handshake.
	ProjectRoot string

	// DevServerURL is announced in the tunnel handshake.
	DevServerURL string

	// ReconnectInterval is the fixed delay between reconnect attempts.
	// Zero means the 3s default.
	ReconnectInterval time.Duration

	// DialTimeout bounds a single dial attempt. Zero means the 10s default.
	DialTimeout time.Duration

	// DialAttempts is the number of attempts a synchronous Start makes
	// before returning a ConnectError. Zero means 1.
	DialAttempts int

	// AsyncConnect makes Start return immediately and dial in the
	// background, where failures feed the regular reconnect cadence.
	AsyncConnect bool

	// Header carries extra HTTP headers on the tunnel dial request.
	Header http.Header

	// ClientID overrides the generated tunnel client id.
	ClientID string

	// AbortHandler is invoked at most once when the server terminates the
	// tunnel with a fatal close code. The reason is the stable text for
	// that code.
	AbortHandler func(reason string, code int)

	// ServerName and ServerVersion identify a DirectServer to MCP clients.
	ServerName    string
	ServerVersion string

	// MCPTransport is the transport a DirectServer serves on.
	// Nil means stdio.
	MCPTransport mcp.Transport
}

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithProjectRoot sets the project root announced in the handshake.
func WithProjectRoot(root string) Option {
	return func(o *Options) {
		o.ProjectRoot = root
	}
}

// WithDevServerURL sets the dev server URL announced in the handshake.
func WithDevServerURL(url string) Option {
	return func(o *Options) {
		o.DevServerURL = url
	}
}

// WithReconnectInterval sets the fixed delay between reconnect attempts.
// The cadence applies no backoff; the interval is used as-is.
func WithReconnectInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.ReconnectInterval = interval
	}
}

// WithDialTimeout bounds a single dial attempt.
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.DialTimeout = timeout
	}
}

// WithDialAttempts sets how many attempts a synchronous Start makes before
// giving up, spaced by the reconnect interval. The default is 1.
func WithDialAttempts(attempts int) Option {
	return func(o *Options) {
		o.DialAttempts = attempts
	}
}

// WithAsyncConnect makes Start return without waiting for the first dial.
// Failures roll into the reconnect cadence instead of being returned.
func WithAsyncConnect() Option {
	return func(o *Options) {
		o.AsyncConnect = true
	}
}

// WithHeader adds extra HTTP headers to the tunnel dial request.
func WithHeader(header http.Header) Option {
	return func(o *Options) {
		o.Header = header
	}
}

// WithClientID overrides the generated tunnel client id sent in the
// X-Tunnel-Client-Id header.
func WithClientID(id string) Option {
	return func(o *Options) {
		o.ClientID = id
	}
}

// WithAbortHandler registers a callback for fatal server closes.
// It fires at most once; after it runs the server is closed for good.
func WithAbortHandler(handler func(reason string, code int)) Option {
	return func(o *Options) {
		o.AbortHandler = handler
	}
}

// WithServerInfo sets the name and version a DirectServer reports to MCP
// clients.
func WithServerInfo(name, version string) Option {
	return func(o *Options) {
		o.ServerName = name
		o.ServerVersion = version
	}
}

// WithMCPTransport sets the transport a DirectServer serves on.
// The default is stdio.
func WithMCPTransport(transport mcp.Transport) Option {
	return func(o *Options) {
		o.MCPTransport = transport
	}
}
