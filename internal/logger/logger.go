package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"user-tracker/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Init installs the default slog logger. Records go to the rotating log
// file when one is configured, to stdout when enabled, and to stderr when
// neither is.
func Init(cfg *config.Config) {
	var handlers []slog.Handler
	opts := &slog.HandlerOptions{Level: getLogLevel(cfg.Log.Level)}

	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			// slog isn't initialized yet
			fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
				Filename:   cfg.Log.File,
				MaxSize:    cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAge:     cfg.Log.MaxAgeDays,
				Compress:   cfg.Log.Compress,
			}, opts))
		}
	}

	if cfg.Log.Stdout {
		handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
	}

	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
	}

	slog.SetDefault(slog.New(newHandler(handlers)))
}

func newHandler(handlers []slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return &MultiHandler{handlers: handlers}
}

// MultiHandler writes to multiple handlers
type MultiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the given level
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes the record to all handlers
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var lastErr error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// WithAttrs returns a new handler with the given attributes
func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

// WithGroup returns a new handler with the given group
func (h *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}

// getLogLevel converts string level to slog.Level
func getLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
