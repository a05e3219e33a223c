// Package automation drives developer devices (Android devices and
// emulators, iOS simulators) through their platform toolchains. Toolchain
// binaries are discovered once at manager construction; every operation
// shells out with the caller's context.
package automation

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/mcp-tunnel-go/internal/errors"
)

// Platform identifies a device backend.
type Platform string

const (
	PlatformAndroid      Platform = "android"
	PlatformIOSSimulator Platform = "ios-simulator"
)

// Device is one automatable device.
type Device interface {
	// ID is the platform-native identifier (adb serial, simulator UDID).
	ID() string

	// Name is a human-readable label.
	Name() string

	// Platform reports which backend owns the device.
	Platform() Platform

	// Screenshot captures the screen as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Tap injects a tap at the given screen coordinates.
	Tap(ctx context.Context, x, y int) error

	// LaunchApp starts the app with the given application id.
	LaunchApp(ctx context.Context, appID string) error
}

// Config holds toolchain locations for a Manager. An explicit path skips
// discovery for that tool and is used as-is; empty fields are discovered
// via PATH and well-known install locations.
type Config struct {
	ADBPath   string
	XcrunPath string
	IDBPath   string

	// Logger is an optional logger for discovery and command operations.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Manager discovers platform toolchains and lists automatable devices.
type Manager struct {
	log *slog.Logger

	// Resolved toolchain paths; empty when the tool is absent. The
	// searched lists feed ToolchainNotFoundError.
	adb           string
	adbSearched   []string
	xcrun         string
	xcrunSearched []string
	idb           string
	idbSearched   []string
}

// NewManager creates a manager and resolves every toolchain once. A missing
// toolchain is not an error here; it surfaces when that platform is used.
func NewManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Manager{log: log.With("component", "automation")}

	m.adb, m.adbSearched = resolveTool(cfg.ADBPath, "adb", adbCommonPaths(), m.log)
	m.xcrun, m.xcrunSearched = resolveTool(cfg.XcrunPath, "xcrun", []string{"/usr/bin/xcrun"}, m.log)
	m.idb, m.idbSearched = resolveTool(cfg.IDBPath, "idb", idbCommonPaths(), m.log)

	return m
}

// Devices lists automatable devices across every platform whose toolchain
// is present. Returns ErrNoDevices when nothing is connected or booted.
func (m *Manager) Devices(ctx context.Context) ([]Device, error) {
	var devices []Device

	if m.adb != "" {
		android, err := m.AndroidDevices(ctx)
		if err != nil {
			return nil, err
		}

		devices = append(devices, android...)
	}

	if m.xcrun != "" {
		sims, err := m.SimulatorDevices(ctx)
		if err != nil {
			return nil, err
		}

		devices = append(devices, sims...)
	}

	if len(devices) == 0 {
		return nil, errors.ErrNoDevices
	}

	return devices, nil
}

// Device finds one device by id. An empty id selects the only device when
// exactly one is available.
func (m *Manager) Device(ctx context.Context, id string) (Device, error) {
	devices, err := m.Devices(ctx)
	if err != nil {
		return nil, err
	}

	if id == "" {
		if len(devices) == 1 {
			return devices[0], nil
		}

		return nil, fmt.Errorf("%d devices available, specify a device id", len(devices))
	}

	for _, d := range devices {
		if d.ID() == id {
			return d, nil
		}
	}

	return nil, fmt.Errorf("device %q not found", id)
}

// AndroidDevices lists devices reported by `adb devices -l`, excluding
// offline and unauthorized entries.
func (m *Manager) AndroidDevices(ctx context.Context) ([]Device, error) {
	if m.adb == "" {
		return nil, &errors.ToolchainNotFoundError{Toolchain: "adb", SearchedPaths: m.adbSearched}
	}

	out, err := run(ctx, m.adb, "devices", "-l")
	if err != nil {
		return nil, err
	}

	var devices []Device

	for _, e := range parseAdbDevices(string(out)) {
		if e.state != "device" {
			m.log.Debug("Skipping android device", "serial", e.serial, "state", e.state)

			continue
		}

		devices = append(devices, &androidDevice{serial: e.serial, model: e.model, adb: m.adb, log: m.log})
	}

	return devices, nil
}

// SimulatorDevices lists booted, available iOS simulators.
func (m *Manager) SimulatorDevices(ctx context.Context) ([]Device, error) {
	if m.xcrun == "" {
		return nil, &errors.ToolchainNotFoundError{Toolchain: "xcrun", SearchedPaths: m.xcrunSearched}
	}

	out, err := run(ctx, m.xcrun, "simctl", "list", "devices", "--json")
	if err != nil {
		return nil, err
	}

	entries, err := parseSimctlList(out)
	if err != nil {
		return nil, err
	}

	var idbErr error
	if m.idb == "" {
		idbErr = &errors.ToolchainNotFoundError{Toolchain: "idb", SearchedPaths: m.idbSearched}
	}

	var devices []Device

	for _, e := range entries {
		if e.State != "Booted" || !e.IsAvailable {
			continue
		}

		devices = append(devices, &iosSimulator{
			udid:   e.UDID,
			name:   e.Name,
			xcrun:  m.xcrun,
			idb:    m.idb,
			idbErr: idbErr,
			log:    m.log,
		})
	}

	return devices, nil
}

// resolveTool finds a toolchain binary: explicit path first, then PATH,
// then the well-known locations. Returns the resolved path ("" when absent)
// and the locations searched.
func resolveTool(explicit, name string, common []string, log *slog.Logger) (string, []string) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}

		return "", []string{explicit}
	}

	searchedPaths := []string{"$PATH"}

	if path, err := exec.LookPath(name); err == nil {
		log.Debug("Found toolchain in PATH", "tool", name, "path", path)

		return path, nil
	}

	for _, path := range common {
		searchedPaths = append(searchedPaths, path)

		if _, err := os.Stat(path); err == nil {
			log.Debug("Found toolchain at common path", "tool", name, "path", path)

			return path, nil
		}
	}

	log.Debug("Toolchain not found", "tool", name, "searched_paths", searchedPaths)

	return "", searchedPaths
}

func adbCommonPaths() []string {
	paths := make([]string, 0, 4)

	if sdk := os.Getenv("ANDROID_HOME"); sdk != "" {
		paths = append(paths, filepath.Join(sdk, "platform-tools", "adb"))
	}

	paths = append(paths, "/usr/local/bin/adb")

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, "Library", "Android", "sdk", "platform-tools", "adb"),
			filepath.Join(homeDir, "Android", "Sdk", "platform-tools", "adb"),
		)
	}

	return paths
}

func idbCommonPaths() []string {
	paths := []string{
		"/usr/local/bin/idb",
		"/opt/homebrew/bin/idb",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".local/bin/idb"))
	}

	return paths
}

// run executes one toolchain command and returns its stdout. Failures carry
// the full command line and captured stderr.
func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	out, err := cmd.Output()
	if err != nil {
		stderr := ""

		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}

		return nil, &errors.CommandError{
			Command: name + " " + strings.Join(args, " "),
			Stderr:  stderr,
			Err:     err,
		}
	}

	return out, nil
}
