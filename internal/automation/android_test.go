package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mcp-tunnel-go/internal/errors"
)

func TestParseAdbDevices(t *testing.T) {
	t.Run("typical long output", func(t *testing.T) {
		output := "List of devices attached\n" +
			"emulator-5554\tdevice product:sdk_gphone64 model:sdk_gphone64_x86_64 device:emu64x transport_id:1\n" +
			"192.168.1.50:5555\toffline\n" +
			"ABC123\tunauthorized\n" +
			"\n"

		entries := parseAdbDevices(output)

		require.Len(t, entries, 3)
		assert.Equal(t, adbEntry{serial: "emulator-5554", state: "device", model: "sdk_gphone64_x86_64"}, entries[0])
		assert.Equal(t, adbEntry{serial: "192.168.1.50:5555", state: "offline"}, entries[1])
		assert.Equal(t, adbEntry{serial: "ABC123", state: "unauthorized"}, entries[2])
	})

	t.Run("daemon startup noise is skipped", func(t *testing.T) {
		output := "* daemon not running; starting now at tcp:5037\n" +
			"* daemon started successfully\n" +
			"List of devices attached\n" +
			"XYZ789\tdevice\n"

		entries := parseAdbDevices(output)

		require.Len(t, entries, 1)
		assert.Equal(t, "XYZ789", entries[0].serial)
		assert.Empty(t, entries[0].model)
	})

	t.Run("empty list", func(t *testing.T) {
		assert.Empty(t, parseAdbDevices("List of devices attached\n\n"))
	})
}

// androidFixture returns the emulator device served by the adbTwoDevices
// script.
func androidFixture(t *testing.T) Device {
	t.Helper()

	adb := writeFakeTool(t, t.TempDir(), "adb", adbTwoDevices)
	m := NewManager(&Config{ADBPath: adb, XcrunPath: "/nonexistent/xcrun", IDBPath: "/nonexistent/idb"})

	d, err := m.Device(context.Background(), "emulator-5554")
	require.NoError(t, err)

	return d
}

func TestAndroidDevice_Screenshot(t *testing.T) {
	d := androidFixture(t)

	data, err := d.Screenshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []byte("FAKEPNG"), data)
}

func TestAndroidDevice_Tap(t *testing.T) {
	d := androidFixture(t)

	require.NoError(t, d.Tap(context.Background(), 10, 20))

	// Coordinates the fake script does not know land in its error branch.
	err := d.Tap(context.Background(), 99, 99)

	var cmdErr *errors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Stderr, "unexpected args")
}

func TestAndroidDevice_LaunchApp(t *testing.T) {
	d := androidFixture(t)

	require.NoError(t, d.LaunchApp(context.Background(), "com.example.app"))
}
