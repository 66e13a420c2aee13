package logging

import (
	"log/slog"
	"os"
)

// New returns a slog.Logger configured for structured, JSON-oriented output.
// Logs go to stderr so command output on stdout stays parseable.
func New(subsystem string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	return slog.New(handler).With("subsystem", subsystem)
}
