package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcptunnel "github.com/wagiedev/mcp-tunnel-go"
	"github.com/wagiedev/mcp-tunnel-go/internal/devserver"
)

// recordingServer captures registrations so tests can invoke the built-in
// handlers directly, without a tunnel or an MCP session.
type recordingServer struct {
	tools     []string
	prompts   []string
	resources []string

	toolHandlers     map[string]mcptunnel.ToolHandler
	promptHandlers   map[string]mcptunnel.PromptHandler
	resourceHandlers map[string]mcptunnel.ResourceHandler
}

func newRecordingServer() *recordingServer {
	return &recordingServer{
		toolHandlers:     make(map[string]mcptunnel.ToolHandler),
		promptHandlers:   make(map[string]mcptunnel.PromptHandler),
		resourceHandlers: make(map[string]mcptunnel.ResourceHandler),
	}
}

func (r *recordingServer) RegisterTool(tool *mcptunnel.Tool, handler mcptunnel.ToolHandler) error {
	r.tools = append(r.tools, tool.Name)
	r.toolHandlers[tool.Name] = handler

	return nil
}

func (r *recordingServer) RegisterPrompt(prompt *mcptunnel.Prompt, handler mcptunnel.PromptHandler) error {
	r.prompts = append(r.prompts, prompt.Name)
	r.promptHandlers[prompt.Name] = handler

	return nil
}

func (r *recordingServer) RegisterResource(resource *mcptunnel.Resource, handler mcptunnel.ResourceHandler) error {
	r.resources = append(r.resources, resource.URI)
	r.resourceHandlers[resource.URI] = handler

	return nil
}

func (r *recordingServer) Start(context.Context) error { return nil }
func (r *recordingServer) Close() error                { return nil }

// registerForTest registers the built-ins with toolchain discovery pinned
// to nonexistent paths, so device tools fail the same way on every host.
func registerForTest(t *testing.T, devURL string) *recordingServer {
	t.Helper()

	rec := newRecordingServer()
	cfg := config{
		ProjectRoot:  "/srv/app",
		DevServerURL: devURL,
		ADBPath:      "/nonexistent/adb",
		XcrunPath:    "/nonexistent/xcrun",
		IDBPath:      "/nonexistent/idb",
	}
	dev := devserver.New(devURL, mcptunnel.NopLogger())

	require.NoError(t, registerBuiltins(rec, cfg, dev, mcptunnel.NopLogger()))

	return rec
}

func TestRegisterBuiltins_RegistersEverything(t *testing.T) {
	rec := registerForTest(t, "http://localhost:1")

	assert.Equal(t, []string{
		"list_devices",
		"take_screenshot",
		"tap",
		"launch_app",
		"dev_server_status",
		"reload_app",
	}, rec.tools)
	assert.Equal(t, []string{"debug_app"}, rec.prompts)
	assert.Equal(t, []string{"devserver://targets"}, rec.resources)
}

func TestDebugPrompt(t *testing.T) {
	rec := registerForTest(t, "http://localhost:8081")
	handler := rec.promptHandlers["debug_app"]
	require.NotNil(t, handler)

	t.Run("includes project context", func(t *testing.T) {
		res, err := handler(context.Background(), &mcptunnel.GetPromptRequest{
			Params: &mcptunnel.GetPromptParams{Name: "debug_app"},
		})
		require.NoError(t, err)
		require.Len(t, res.Messages, 1)

		text := res.Messages[0].Content.(*mcptunnel.TextContent).Text
		assert.Contains(t, text, "/srv/app")
		assert.Contains(t, text, "http://localhost:8081")
	})

	t.Run("appends the focus argument", func(t *testing.T) {
		res, err := handler(context.Background(), &mcptunnel.GetPromptRequest{
			Params: &mcptunnel.GetPromptParams{
				Name:      "debug_app",
				Arguments: map[string]string{"focus": "slow startup"},
			},
		})
		require.NoError(t, err)

		text := res.Messages[0].Content.(*mcptunnel.TextContent).Text
		assert.Contains(t, text, "Focus on: slow startup")
	})
}

func TestDevServerStatusTool(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("packager-status:running"))
		}))
		defer ts.Close()

		rec := registerForTest(t, ts.URL)

		res, err := rec.toolHandlers["dev_server_status"](context.Background(), nil)
		require.NoError(t, err)
		require.False(t, res.IsError)

		text := res.Content[0].(*mcptunnel.TextContent).Text
		assert.Contains(t, text, "is running")
		assert.Contains(t, text, ts.URL)
	})

	t.Run("unreachable reports a tool error", func(t *testing.T) {
		rec := registerForTest(t, "http://127.0.0.1:1")

		res, err := rec.toolHandlers["dev_server_status"](context.Background(), nil)
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func TestReloadAppTool(t *testing.T) {
	var gotMethod, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
	}))
	defer ts.Close()

	rec := registerForTest(t, ts.URL)

	res, err := rec.toolHandlers["reload_app"](context.Background(), nil)
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/reload", gotPath)
}

func TestInspectorTargetsResource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"page-1","title":"Home","webSocketDebuggerUrl":"ws://localhost:8081/inspector/debug?page=1"}]`))
	}))
	defer ts.Close()

	rec := registerForTest(t, ts.URL)
	handler := rec.resourceHandlers["devserver://targets"]
	require.NotNil(t, handler)

	res, err := handler(context.Background(), &mcptunnel.ReadResourceRequest{
		Params: &mcptunnel.ReadResourceParams{URI: "devserver://targets"},
	})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "devserver://targets", res.Contents[0].URI)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	var targets []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &targets))
	require.Len(t, targets, 1)
	assert.Equal(t, "page-1", targets[0]["id"])
}

func TestDeviceToolsReportMissingToolchains(t *testing.T) {
	// registerForTest pins toolchains to nonexistent paths; device tools
	// must surface that as a tool error rather than failing the call.
	rec := registerForTest(t, "http://localhost:1")

	res, err := rec.toolHandlers["list_devices"](context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = rec.toolHandlers["tap"](context.Background(), &mcptunnel.CallToolRequest{
		Params: &mcptunnel.CallToolParamsRaw{
			Name:      "tap",
			Arguments: json.RawMessage(`{"x": 10, "y": 20}`),
		},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestTapToolValidatesCoordinates(t *testing.T) {
	rec := registerForTest(t, "http://localhost:1")

	res, err := rec.toolHandlers["tap"](context.Background(), &mcptunnel.CallToolRequest{
		Params: &mcptunnel.CallToolParamsRaw{
			Name:      "tap",
			Arguments: json.RawMessage(`{"deviceId": "emulator-5554"}`),
		},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)

	text := res.Content[0].(*mcptunnel.TextContent).Text
	assert.Contains(t, text, "x and y")
}

func TestLaunchAppToolRequiresAppID(t *testing.T) {
	rec := registerForTest(t, "http://localhost:1")

	res, err := rec.toolHandlers["launch_app"](context.Background(), &mcptunnel.CallToolRequest{
		Params: &mcptunnel.CallToolParamsRaw{Name: "launch_app"},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)

	text := res.Content[0].(*mcptunnel.TextContent).Text
	assert.Contains(t, text, "appId is required")
}

func TestIntArg(t *testing.T) {
	args := map[string]any{"maxDim": float64(512), "label": "x"}

	assert.Equal(t, 512, intArg(args, "maxDim", 1024))
	assert.Equal(t, 1024, intArg(args, "missing", 1024))
	assert.Equal(t, 1024, intArg(args, "label", 1024), "non-numeric values fall back")
}
