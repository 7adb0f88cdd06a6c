package adapter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SetupLogger opens cfg.File for appending and returns a logger writing to
// it along with the func that closes the file. With no file configured the
// logger discards everything.
func SetupLogger(cfg LoggingConfig) (*slog.Logger, func() error, error) {
	path := expandHome(cfg.File)
	if path == "" {
		return NullLogger(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewLogger(f, cfg), f.Close, nil
}

// NewLogger builds the application logger. Format "text" selects slog's
// key=value handler; anything else logs JSON lines.
func NewLogger(w io.Writer, cfg LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("app", "estampas")
}

// ParseLogLevel reads a level name such as "debug" or "WARN+2", falling
// back to INFO
func ParseLogLevel(name string) slog.Level {
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func NullLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
