// Package devserver probes and drives the app dev server announced in the
// tunnel handshake.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wagiedev/mcp-tunnel-go/internal/errors"
)

// DefaultBaseURL is where a locally started dev server usually listens.
const DefaultBaseURL = "http://localhost:8081"

// statusRunning is the body the dev server serves while its packager is up.
const statusRunning = "packager-status:running"

const requestTimeout = 10 * time.Second

// maxBodySize caps how much of a response is read; dev server replies are
// tiny, anything larger is a misbehaving endpoint.
const maxBodySize = 1 << 20

// Target is one inspectable app surface reported by the dev server.
type Target struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	DeviceName           string `json:"deviceName"`
}

// Client talks to a dev server over HTTP. The zero value is not usable;
// construct with New.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     *slog.Logger
}

// New creates a client for the dev server at baseURL. An empty baseURL
// falls back to DefaultBaseURL; a trailing slash is trimmed.
func New(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
		log:     logger.With("component", "devserver"),
	}
}

// BaseURL returns the normalized base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status probes GET /status and returns nil when the packager reports
// itself running. Any other outcome is a *errors.DevServerError.
func (c *Client) Status(ctx context.Context) error {
	body, err := c.get(ctx, "/status")
	if err != nil {
		return err
	}

	if !strings.Contains(string(body), statusRunning) {
		return &errors.DevServerError{
			URL: c.baseURL + "/status",
			Err: fmt.Errorf("unexpected status body %q", strings.TrimSpace(string(body))),
		}
	}

	return nil
}

// Targets lists the debuggable targets the dev server exposes on
// GET /json/list.
func (c *Client) Targets(ctx context.Context) ([]*Target, error) {
	body, err := c.get(ctx, "/json/list")
	if err != nil {
		return nil, err
	}

	var targets []*Target
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, &errors.DevServerError{
			URL: c.baseURL + "/json/list",
			Err: fmt.Errorf("decode targets: %w", err),
		}
	}

	return targets, nil
}

// Reload asks the dev server to reload the running app.
func (c *Client) Reload(ctx context.Context) error {
	_, err := c.post(ctx, "/reload")

	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path)
}

func (c *Client) post(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path)
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &errors.DevServerError{URL: url, Err: err}
	}

	c.log.Debug("Dev server request", "method", method, "url", url)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &errors.DevServerError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &errors.DevServerError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &errors.DevServerError{URL: url, StatusCode: resp.StatusCode}
	}

	return body, nil
}
