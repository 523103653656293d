package main

import (
	"log/slog"
	"os"
	"strings"

	"bbsgatewayd/internal/config"
)

// configureLogging sets the process-wide slog level and output format
// from cfg.Logging; internal/link, internal/telnet, and internal/directory
// all log through log/slog rather than this package's plain log.Logger.
func configureLogging(cfg config.Logging) {
	var level slog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
