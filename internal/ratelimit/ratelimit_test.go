package ratelimit

import (
	"testing"

	"bbsgatewayd/internal/store"
)

func TestIsValidCallsign(t *testing.T) {
	cases := map[string]bool{
		"N0CALL":    true,
		"W2ASM":     true,
		"K0ASM-5":   true,
		"VE3ABC-10": true,
		"NOTACALL":  false,
		"":          false,
		"N0CALL-99": true,
		"123456":    true,
	}
	for cs, want := range cases {
		if got := IsValidCallsign(cs); got != want {
			t.Errorf("IsValidCallsign(%q) = %v, want %v", cs, got, want)
		}
	}
}

func TestParseAndFormat(t *testing.T) {
	base, ssid := Parse("n0call-10")
	if base != "N0CALL" || ssid != 10 {
		t.Errorf("Parse = (%q, %d)", base, ssid)
	}
	base, ssid = Parse("W2ASM")
	if base != "W2ASM" || ssid != 0 {
		t.Errorf("Parse(no ssid) = (%q, %d)", base, ssid)
	}
	if got := Format("w2asm", 5); got != "W2ASM-5" {
		t.Errorf("Format = %q", got)
	}
	if got := Format("w2asm", 0); got != "W2ASM" {
		t.Errorf("Format(ssid=0) = %q", got)
	}
}

func newTestLimiter(t *testing.T, perHour, perDay int) (*Limiter, *store.Store) {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, perHour, perDay, true), db
}

func TestCheckLimitRejectsInvalidCallsignBeforeDatabase(t *testing.T) {
	l, _ := newTestLimiter(t, 10, 50)
	allowed, reason, err := l.CheckLimit("not-a-callsign")
	if err != nil {
		t.Fatalf("CheckLimit: %v", err)
	}
	if allowed || reason != "Invalid callsign format" {
		t.Errorf("allowed=%v reason=%q", allowed, reason)
	}
}

func TestCheckLimitDisabledAlwaysAllows(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 1)
	l.Enabled = false
	allowed, _, err := l.CheckLimit("not-a-callsign")
	if err != nil || !allowed {
		t.Fatalf("allowed=%v err=%v", allowed, err)
	}
}

func TestCheckLimitEnforcesHourlyCeiling(t *testing.T) {
	l, db := newTestLimiter(t, 1, 50)
	allowed, _, err := l.CheckLimit("W2ASM")
	if err != nil || !allowed {
		t.Fatalf("first check: allowed=%v err=%v", allowed, err)
	}
	if err := db.LogQuery(store.QueryLog{Callsign: "W2ASM", Query: "x"}); err != nil {
		t.Fatalf("LogQuery: %v", err)
	}
	allowed, reason, err := l.CheckLimit("W2ASM")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if allowed || reason != "Hourly limit reached (1/hour)" {
		t.Errorf("allowed=%v reason=%q", allowed, reason)
	}
}

func TestGetStatusDisabled(t *testing.T) {
	l, _ := newTestLimiter(t, 10, 50)
	l.Enabled = false
	st, err := l.GetStatus("W2ASM")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.Enabled {
		t.Error("expected disabled status")
	}
	if FormatStatus(st) != "Rate limiting is disabled." {
		t.Errorf("FormatStatus = %q", FormatStatus(st))
	}
}

func TestFormatStatusEnabled(t *testing.T) {
	st := Status{Enabled: true, HourlyUsed: 2, HourlyLimit: 10, HourlyRemaining: 8, DailyUsed: 5, DailyLimit: 50, DailyRemaining: 45}
	want := "Rate limits:\nHourly: 2/10 (8 remaining)\nDaily: 5/50 (45 remaining)"
	if got := FormatStatus(st); got != want {
		t.Errorf("FormatStatus = %q, want %q", got, want)
	}
}
