package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bbsgatewayd/internal/link"
	"bbsgatewayd/internal/session"
	"bbsgatewayd/internal/store"
	"bbsgatewayd/internal/telnet"
)

func TestRunSweepsStopsOnCancel(t *testing.T) {
	sessions := session.NewStore(10)
	tn := telnet.NewServer(time.Minute)
	lk := link.NewManager(nil, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runSweeps(ctx, sessions, tn, lk, time.Minute)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runSweeps did not exit after cancel")
	}
}

func TestRunMaintenanceStopsOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gateway.db")
	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runMaintenance(ctx, st)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runMaintenance did not exit after cancel")
	}
}
