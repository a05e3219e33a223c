package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
)

// iosSimulator automates one booted simulator through simctl, with idb for
// the UI operations simctl does not offer.
type iosSimulator struct {
	udid  string
	name  string
	xcrun string

	// idb is empty when the tool is absent; idbErr then carries the
	// prebuilt ToolchainNotFoundError for operations that need it.
	idb    string
	idbErr error

	log *slog.Logger
}

func (d *iosSimulator) ID() string {
	return d.udid
}

func (d *iosSimulator) Name() string {
	return d.name
}

func (d *iosSimulator) Platform() Platform {
	return PlatformIOSSimulator
}

// Screenshot captures the screen via `simctl io screenshot -`, streaming
// the PNG to stdout.
func (d *iosSimulator) Screenshot(ctx context.Context) ([]byte, error) {
	d.log.Debug("Capturing simulator screenshot", "udid", d.udid)

	return run(ctx, d.xcrun, "simctl", "io", d.udid, "screenshot", "-")
}

// Tap injects a tap through idb; simctl has no touch injection.
func (d *iosSimulator) Tap(ctx context.Context, x, y int) error {
	if d.idb == "" {
		return fmt.Errorf("tap on ios simulator requires idb: %w", d.idbErr)
	}

	d.log.Debug("Tapping simulator", "udid", d.udid, "x", x, "y", y)

	_, err := run(ctx, d.idb, "ui", "tap", "--udid", d.udid, strconv.Itoa(x), strconv.Itoa(y))

	return err
}

func (d *iosSimulator) LaunchApp(ctx context.Context, appID string) error {
	d.log.Debug("Launching simulator app", "udid", d.udid, "app_id", appID)

	_, err := run(ctx, d.xcrun, "simctl", "launch", d.udid, appID)

	return err
}

// simctlDevice is one device entry of `simctl list devices --json`.
type simctlDevice struct {
	UDID        string `json:"udid"`
	Name        string `json:"name"`
	State       string `json:"state"`
	IsAvailable bool   `json:"isAvailable"`
}

// parseSimctlList decodes `simctl list devices --json` output into a flat,
// deterministically ordered device list. Runtimes are visited in sorted
// order; within a runtime, simctl's own ordering is kept. All states are
// returned so callers can filter on Booted.
func parseSimctlList(data []byte) ([]simctlDevice, error) {
	var list struct {
		Devices map[string][]simctlDevice `json:"devices"`
	}

	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode simctl device list: %w", err)
	}

	runtimes := make([]string, 0, len(list.Devices))
	for runtime := range list.Devices {
		runtimes = append(runtimes, runtime)
	}

	sort.Strings(runtimes)

	var entries []simctlDevice
	for _, runtime := range runtimes {
		entries = append(entries, list.Devices[runtime]...)
	}

	return entries, nil
}
