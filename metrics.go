package main

import (
	"context"
	"log"
	"time"

	"bbsgatewayd/internal/link"
	"bbsgatewayd/internal/session"
	"bbsgatewayd/internal/telnet"
)

// RunMetrics logs connection and session counters every interval until
// ctx is canceled.
func RunMetrics(ctx context.Context, sessions *session.Store, tn *telnet.Server, lk *link.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := sessions.Stats()
			telnetCount := tn.Count()
			ax25Count := lk.Count()
			if stats.ActiveSessions > 0 || telnetCount > 0 || ax25Count > 0 {
				log.Printf("[metrics] sessions=%d queries=%d telnet=%d ax25=%d",
					stats.ActiveSessions, stats.TotalQueries, telnetCount, ax25Count)
			}
		}
	}
}
