package main

import (
	"context"
	"log/slog"
	"testing"

	"bbsgatewayd/internal/config"
)

func TestConfigureLoggingSetsLevel(t *testing.T) {
	configureLogging(config.Logging{Level: "debug", Format: "text"})
	h := slog.Default().Handler()
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level to be enabled after configuring with level=debug")
	}

	configureLogging(config.Logging{Level: "warn", Format: "text"})
	h = slog.Default().Handler()
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info level to be disabled after configuring with level=warn")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected warn level to be enabled after configuring with level=warn")
	}
}

func TestConfigureLoggingDefaultsToInfo(t *testing.T) {
	configureLogging(config.Logging{Level: "", Format: ""})
	h := slog.Default().Handler()
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info level to be enabled with an empty level config")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level to be disabled with an empty level config")
	}
}
