package automation

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// androidDevice automates one device or emulator through adb.
type androidDevice struct {
	serial string
	model  string
	adb    string
	log    *slog.Logger
}

func (d *androidDevice) ID() string {
	return d.serial
}

func (d *androidDevice) Name() string {
	if d.model != "" {
		return d.model
	}

	return d.serial
}

func (d *androidDevice) Platform() Platform {
	return PlatformAndroid
}

// Screenshot captures the screen via `adb exec-out screencap -p`, which
// writes the PNG straight to stdout without shell newline mangling.
func (d *androidDevice) Screenshot(ctx context.Context) ([]byte, error) {
	d.log.Debug("Capturing android screenshot", "serial", d.serial)

	return run(ctx, d.adb, "-s", d.serial, "exec-out", "screencap", "-p")
}

func (d *androidDevice) Tap(ctx context.Context, x, y int) error {
	d.log.Debug("Tapping android device", "serial", d.serial, "x", x, "y", y)

	_, err := run(ctx, d.adb, "-s", d.serial, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))

	return err
}

// LaunchApp starts the app's launcher activity via monkey, which needs only
// the package id.
func (d *androidDevice) LaunchApp(ctx context.Context, appID string) error {
	d.log.Debug("Launching android app", "serial", d.serial, "app_id", appID)

	_, err := run(ctx, d.adb, "-s", d.serial,
		"shell", "monkey", "-p", appID, "-c", "android.intent.category.LAUNCHER", "1")

	return err
}

// adbEntry is one line of `adb devices -l` output.
type adbEntry struct {
	serial string
	state  string
	model  string
}

// parseAdbDevices extracts device entries from `adb devices -l` output.
// Header, daemon-startup, and blank lines are skipped; every listed device
// is returned with its state so callers can filter offline and unauthorized
// entries.
func parseAdbDevices(output string) []adbEntry {
	var entries []adbEntry

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		entry := adbEntry{serial: fields[0], state: fields[1]}

		// Long format appends key:value pairs such as model:Pixel_9.
		for _, field := range fields[2:] {
			if model, ok := strings.CutPrefix(field, "model:"); ok {
				entry.model = model

				break
			}
		}

		entries = append(entries, entry)
	}

	return entries
}
