package main

import "time"

// Operational limits — named constants for values that would otherwise
// be scattered across main.go and the background sweep goroutines.
const (
	// sweepInterval is how often idle AX.25 connections, idle telnet
	// connections, and idle sessions are reaped.
	sweepInterval = 60 * time.Second

	// oldDataRetentionDays bounds how long query/rate-limit/error rows
	// are kept before CleanupOldData drops them.
	oldDataRetentionDays = 30

	// optimizeInterval is how often the SQLite query planner is asked
	// to re-analyze.
	optimizeInterval = 1 * time.Hour

	// metricsInterval is how often the counters line is logged.
	metricsInterval = 5 * time.Minute

	// socketIdleTimeout bounds how long a telnet or AX.25 connection may
	// sit without activity before the periodic sweep closes it. This is
	// independent of sessions.timeout, which governs when a caller's
	// conversation history is dropped, not when its socket is closed.
	socketIdleTimeout = 10 * time.Minute
)
