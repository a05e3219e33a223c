package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcptunnel "github.com/wagiedev/mcp-tunnel-go"
	"github.com/wagiedev/mcp-tunnel-go/internal/automation"
	"github.com/wagiedev/mcp-tunnel-go/internal/devserver"
	"github.com/wagiedev/mcp-tunnel-go/internal/imaging"
)

// defaultScreenshotDim bounds screenshots before they cross the tunnel.
const defaultScreenshotDim = 1024

// registerBuiltins wires the capabilities every mcptunnel process exposes:
// device automation tools, dev-server control, the inspector-target
// resource, and a debugging prompt.
func registerBuiltins(server mcptunnel.Server, cfg config, dev *devserver.Client, logger *slog.Logger) error {
	devices := automation.NewManager(&automation.Config{
		ADBPath:   cfg.ADBPath,
		XcrunPath: cfg.XcrunPath,
		IDBPath:   cfg.IDBPath,
		Logger:    logger,
	})

	if err := registerDeviceTools(server, devices); err != nil {
		return err
	}

	if err := registerDevServerCapabilities(server, dev); err != nil {
		return err
	}

	return registerDebugPrompt(server, cfg)
}

func registerDeviceTools(server mcptunnel.Server, devices *automation.Manager) error {
	listTool := mcptunnel.NewTool(
		"list_devices",
		"List connected Android devices and booted iOS simulators",
		&mcptunnel.Schema{Type: "object"},
	)

	err := server.RegisterTool(listTool, func(ctx context.Context, _ *mcptunnel.CallToolRequest) (*mcptunnel.CallToolResult, error) {
		found, err := devices.Devices(ctx)
		if err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		var b strings.Builder
		for _, d := range found {
			fmt.Fprintf(&b, "%s\t%s\t%s\n", d.ID(), d.Name(), d.Platform())
		}

		return mcptunnel.TextResult(b.String()), nil
	})
	if err != nil {
		return err
	}

	screenshotTool := mcptunnel.NewTool(
		"take_screenshot",
		"Capture a device screen as an image",
		&mcptunnel.Schema{
			Type: "object",
			Properties: map[string]*mcptunnel.Schema{
				"deviceId": {Type: "string", Description: "Device id; omit when exactly one device is connected"},
				"maxDim":   {Type: "integer", Description: "Bound on the larger image dimension in pixels"},
			},
		},
	)

	err = server.RegisterTool(screenshotTool, func(ctx context.Context, req *mcptunnel.CallToolRequest) (*mcptunnel.CallToolResult, error) {
		args, err := mcptunnel.ParseArguments(req)
		if err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		device, err := pickDevice(ctx, devices, args)
		if err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		raw, err := device.Screenshot(ctx)
		if err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		data, mime, err := imaging.Downscale(raw, intArg(args, "maxDim", defaultScreenshotDim))
		if err != nil {
			return mcptunnel.ErrorResult(fmt.Sprintf("process screenshot: %v", err)), nil
		}

		return mcptunnel.ImageResult(data, mime), nil
	})
	if err != nil {
		return err
	}

	tapTool := mcptunnel.NewTool(
		"tap",
		"Tap the device screen at the given coordinates",
		&mcptunnel.Schema{
			Type: "object",
			Properties: map[string]*mcptunnel.Schema{
				"deviceId": {Type: "string", Description: "Device id; omit when exactly one device is connected"},
				"x":        {Type: "integer"},
				"y":        {Type: "integer"},
			},
			Required: []string{"x", "y"},
		},
	)

	err = server.RegisterTool(tapTool, func(ctx context.Context, req *mcptunnel.CallToolRequest) (*mcptunnel.CallToolResult, error) {
		args, err := mcptunnel.ParseArguments(req)
		if err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		x, okX := args["x"].(float64)
		y, okY := args["y"].(float64)
		if !okX || !okY {
			return mcptunnel.ErrorResult("x and y coordinates are required"), nil
		}

		device, err := pickDevice(ctx, devices, args)
		if err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		if err := device.Tap(ctx, int(x), int(y)); err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		return mcptunnel.TextResult(fmt.Sprintf("Tapped (%d, %d) on %s", int(x), int(y), device.Name())), nil
	})
	if err != nil {
		return err
	}

	launchTool := mcptunnel.NewTool(
		"launch_app",
		"Launch an app on a device by its application id",
		&mcptunnel.Schema{
			Type: "object",
			Properties: map[string]*mcptunnel.Schema{
				"deviceId": {Type: "string", Description: "Device id; omit when exactly one device is connected"},
				"appId":    {Type: "string", Description: "Android package name or iOS bundle identifier"},
			},
			Required: []string{"appId"},
		},
	)

	return server.RegisterTool(launchTool, func(ctx context.Context, req *mcptunnel.CallToolRequest) (*mcptunnel.CallToolResult, error) {
		args, err := mcptunnel.ParseArguments(req)
		if err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		appID, _ := args["appId"].(string)
		if appID == "" {
			return mcptunnel.ErrorResult("appId is required"), nil
		}

		device, err := pickDevice(ctx, devices, args)
		if err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		if err := device.LaunchApp(ctx, appID); err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		return mcptunnel.TextResult(fmt.Sprintf("Launched %s on %s", appID, device.Name())), nil
	})
}

func registerDevServerCapabilities(server mcptunnel.Server, dev *devserver.Client) error {
	statusTool := mcptunnel.NewTool(
		"dev_server_status",
		"Check whether the app dev server is running",
		&mcptunnel.Schema{Type: "object"},
	)

	err := server.RegisterTool(statusTool, func(ctx context.Context, _ *mcptunnel.CallToolRequest) (*mcptunnel.CallToolResult, error) {
		if err := dev.Status(ctx); err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		return mcptunnel.TextResult(fmt.Sprintf("Dev server at %s is running", dev.BaseURL())), nil
	})
	if err != nil {
		return err
	}

	reloadTool := mcptunnel.NewTool(
		"reload_app",
		"Reload the app on every connected device via the dev server",
		&mcptunnel.Schema{Type: "object"},
	)

	err = server.RegisterTool(reloadTool, func(ctx context.Context, _ *mcptunnel.CallToolRequest) (*mcptunnel.CallToolResult, error) {
		if err := dev.Reload(ctx); err != nil {
			return mcptunnel.ErrorResult(err.Error()), nil
		}

		return mcptunnel.TextResult("Reload triggered"), nil
	})
	if err != nil {
		return err
	}

	targets := mcptunnel.NewResource("devserver://targets", "inspector-targets", "application/json")

	return server.RegisterResource(targets, func(ctx context.Context, req *mcptunnel.ReadResourceRequest) (*mcptunnel.ReadResourceResult, error) {
		list, err := dev.Targets(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return nil, err
		}

		return mcptunnel.TextResourceResult(req.Params.URI, "application/json", string(data)), nil
	})
}

func registerDebugPrompt(server mcptunnel.Server, cfg config) error {
	prompt := mcptunnel.NewPrompt(
		"debug_app",
		"Investigate why the app under development is misbehaving",
		&mcptunnel.PromptArgument{Name: "focus", Description: "Symptom or area to concentrate on"},
	)

	return server.RegisterPrompt(prompt, func(_ context.Context, req *mcptunnel.GetPromptRequest) (*mcptunnel.GetPromptResult, error) {
		var b strings.Builder
		fmt.Fprintf(&b, "You are debugging the app rooted at %s.\n", cfg.ProjectRoot)
		fmt.Fprintf(&b, "The dev server is expected at %s.\n\n", cfg.DevServerURL)
		b.WriteString("Check the dev server status first, then list devices and capture a screenshot to see the current state.")

		if focus := req.Params.Arguments["focus"]; focus != "" {
			fmt.Fprintf(&b, "\nFocus on: %s", focus)
		}

		return mcptunnel.TextPromptResult("App debugging session", b.String()), nil
	})
}

// pickDevice resolves the optional deviceId argument against the manager.
func pickDevice(ctx context.Context, devices *automation.Manager, args map[string]any) (automation.Device, error) {
	id, _ := args["deviceId"].(string)

	return devices.Device(ctx, id)
}

// intArg reads an integer argument, which JSON delivers as float64.
func intArg(args map[string]any, name string, fallback int) int {
	if v, ok := args[name].(float64); ok {
		return int(v)
	}

	return fallback
}
