// Package ratelimit guards per-callsign query frequency and validates
// amateur radio callsign format.
package ratelimit

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"bbsgatewayd/internal/store"
)

var callsignPattern = regexp.MustCompile(`^[A-Z0-9]{1,2}[0-9][A-Z0-9]{1,4}(-[0-9]{1,2})?$`)

// IsValidCallsign reports whether callsign matches the standard amateur
// radio format: 1-2 characters, a digit, 1-4 characters, optional -SSID.
func IsValidCallsign(callsign string) bool {
	return callsignPattern.MatchString(strings.ToUpper(strings.TrimSpace(callsign)))
}

// Normalize upper-cases and trims a callsign.
func Normalize(callsign string) string {
	return strings.ToUpper(strings.TrimSpace(callsign))
}

// Parse splits a callsign into its base and SSID, defaulting to SSID 0
// when absent or malformed (e.g. "N0CALL-10" -> ("N0CALL", 10)).
func Parse(callsign string) (string, int) {
	normalized := Normalize(callsign)
	base, suffix, ok := strings.Cut(normalized, "-")
	if !ok {
		return normalized, 0
	}
	ssid, err := strconv.Atoi(suffix)
	if err != nil {
		return base, 0
	}
	return base, ssid
}

// Format joins a base callsign with its SSID, omitting the suffix when
// ssid is 0.
func Format(callsign string, ssid int) string {
	base := Normalize(callsign)
	if ssid > 0 {
		return fmt.Sprintf("%s-%d", base, ssid)
	}
	return base
}

// burstRatePerSecond and burstSize bound how fast a single callsign may
// fire queries within one hour-granularity window, independent of the
// DB-backed hourly/daily ceilings: a caller hammering the link between
// two `CheckRateLimit` DB hits would otherwise sail through until the
// next row is written.
const (
	burstRatePerSecond = 0.2 // one query every 5s, sustained
	burstSize          = 3   // allow a short burst on top of that
)

// Limiter controls query frequency per callsign, backed by persistent
// counters in the relational store plus an in-process token-bucket
// burst guard per callsign.
type Limiter struct {
	db             *store.Store
	QueriesPerHour int
	QueriesPerDay  int
	Enabled        bool

	burstMu  sync.Mutex
	bursters map[string]*rate.Limiter
}

// New creates a Limiter with the given hourly/daily ceilings.
func New(db *store.Store, queriesPerHour, queriesPerDay int, enabled bool) *Limiter {
	return &Limiter{
		db:             db,
		QueriesPerHour: queriesPerHour,
		QueriesPerDay:  queriesPerDay,
		Enabled:        enabled,
		bursters:       make(map[string]*rate.Limiter),
	}
}

func (l *Limiter) burster(callsign string) *rate.Limiter {
	l.burstMu.Lock()
	defer l.burstMu.Unlock()
	b, ok := l.bursters[callsign]
	if !ok {
		b = rate.NewLimiter(rate.Limit(burstRatePerSecond), burstSize)
		l.bursters[callsign] = b
	}
	return b
}

// CheckLimit reports whether callsign is within its rate limits. When
// disabled it always allows. An invalid callsign format is rejected
// before the database is consulted.
func (l *Limiter) CheckLimit(callsign string) (allowed bool, reason string, err error) {
	if !l.Enabled {
		return true, "", nil
	}
	if !IsValidCallsign(callsign) {
		return false, "Invalid callsign format", nil
	}
	cs := Normalize(callsign)

	if !l.burster(cs).Allow() {
		slog.Warn("burst rate limit exceeded", "callsign", cs)
		return false, "Sending too quickly, please slow down", nil
	}

	allowed, reason, err = l.db.CheckRateLimit(cs, l.QueriesPerHour, l.QueriesPerDay)
	if err != nil {
		return false, "", err
	}
	if !allowed {
		slog.Warn("rate limit exceeded", "callsign", cs, "reason", reason)
	}
	return allowed, reason, nil
}

// Status is the rate-limit picture returned to an operator.
type Status struct {
	Enabled         bool
	HourlyUsed      int
	HourlyLimit     int
	HourlyRemaining int
	DailyUsed       int
	DailyLimit      int
	DailyRemaining  int
}

// GetStatus returns callsign's current rate-limit counters.
func (l *Limiter) GetStatus(callsign string) (Status, error) {
	if !l.Enabled {
		return Status{Enabled: false}, nil
	}
	s, err := l.db.RateLimitStatusFor(Normalize(callsign), l.QueriesPerHour, l.QueriesPerDay)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Enabled:         true,
		HourlyUsed:      s.HourlyUsed,
		HourlyLimit:     s.HourlyLimit,
		HourlyRemaining: s.HourlyRemaining,
		DailyUsed:       s.DailyUsed,
		DailyLimit:      s.DailyLimit,
		DailyRemaining:  s.DailyRemaining,
	}, nil
}

// FormatStatus renders a Status as the friendly message shown to an
// operator over the link.
func FormatStatus(s Status) string {
	if !s.Enabled {
		return "Rate limiting is disabled."
	}
	return fmt.Sprintf(
		"Rate limits:\nHourly: %d/%d (%d remaining)\nDaily: %d/%d (%d remaining)",
		s.HourlyUsed, s.HourlyLimit, s.HourlyRemaining,
		s.DailyUsed, s.DailyLimit, s.DailyRemaining,
	)
}
