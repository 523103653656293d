package main

import (
	"context"
	"log"
	"time"

	"bbsgatewayd/internal/link"
	"bbsgatewayd/internal/session"
	"bbsgatewayd/internal/store"
	"bbsgatewayd/internal/telnet"
)

// runSweeps periodically reaps idle AX.25 connections, idle telnet
// connections, and idle sessions until ctx is canceled.
func runSweeps(ctx context.Context, sessions *session.Store, tn *telnet.Server, lk *link.Manager, sessionTimeout time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if closed := lk.Sweep(); len(closed) > 0 {
				log.Printf("[sweep] closed %d idle AX.25 connection(s): %v", len(closed), closed)
			}
			if closed := tn.Sweep(); len(closed) > 0 {
				log.Printf("[sweep] closed %d idle telnet connection(s): %v", len(closed), closed)
			}
			if sessionTimeout > 0 {
				if idle := sessions.CleanupIdle(sessionTimeout); len(idle) > 0 {
					log.Printf("[sweep] dropped %d idle session(s): %v", len(idle), idle)
				}
			}
		}
	}
}

// runMaintenance periodically optimizes the database and trims old
// query/rate-limit/error rows until ctx is canceled.
func runMaintenance(ctx context.Context, st *store.Store) {
	ticker := time.NewTicker(optimizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.Optimize(); err != nil {
				log.Printf("[store] optimize: %v", err)
			}
			if err := st.CleanupOldData(oldDataRetentionDays); err != nil {
				log.Printf("[store] cleanup old data: %v", err)
			}
		}
	}
}
