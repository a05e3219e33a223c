package mcptunnel

import (
	"io"
	"log/slog"
)

// NopLogger returns a logger that discards all output. It is the default
// for every server and internal component when no WithLogger option is
// given.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
