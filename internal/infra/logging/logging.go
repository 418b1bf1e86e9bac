package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewJSON builds a JSON logger writing to w at the given level.
func NewJSON(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetupJSON sets slog's default logger to use JSON output on stdout at the
// given level and returns it.
func SetupJSON(level slog.Level) *slog.Logger {
	logger := NewJSON(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

// Component tags every record of the returned logger with a component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}
