package activity

import (
	"strings"
	"testing"
	"time"
)

func TestAddEvictsOldestBeyondMaxItems(t *testing.T) {
	f := New(2)
	f.Add("K0ASM", "connect", "")
	f.Add("W1AW", "query", "")
	f.Add("N0CALL", "lookup", "W1AW")

	if len(f.entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(f.entries))
	}
	if f.entries[0].callsign != "W1AW" {
		t.Errorf("oldest surviving entry = %q, want W1AW", f.entries[0].callsign)
	}
}

func TestRecentSummaryEmptyFeed(t *testing.T) {
	f := New(10)
	if got := f.RecentSummary(3, 60); got != "No recent activity" {
		t.Errorf("RecentSummary() = %q", got)
	}
}

func TestRecentSummaryFormatsNewestFirst(t *testing.T) {
	f := New(10)
	f.Add("K0ASM", "connect", "")
	f.Add("W1AW", "lookup", "N0CALL")

	got := f.RecentSummary(3, 60)
	if !strings.HasPrefix(got, "Recent: ") {
		t.Fatalf("RecentSummary() = %q", got)
	}
	if !strings.Contains(got, "W1AW looked up N0CALL") {
		t.Errorf("RecentSummary() = %q, want lookup entry", got)
	}
	if strings.Index(got, "W1AW") > strings.Index(got, "K0ASM") {
		t.Errorf("RecentSummary() = %q, want newest first", got)
	}
}

func TestRecentSummaryExcludesStaleEntries(t *testing.T) {
	f := New(10)
	f.entries = append(f.entries, entry{
		callsign:  "K0ASM",
		action:    "connect",
		timestamp: time.Now().Add(-2 * time.Hour),
	})

	if got := f.RecentSummary(3, 60); got != "No recent activity" {
		t.Errorf("RecentSummary() = %q, want stale entry excluded", got)
	}
}

func TestActiveUsersDeduplicates(t *testing.T) {
	f := New(10)
	f.Add("K0ASM", "query", "")
	f.Add("K0ASM", "query", "")
	f.Add("W1AW", "connect", "")

	users := f.ActiveUsers(60)
	if len(users) != 2 {
		t.Errorf("ActiveUsers() = %v, want 2 distinct callsigns", users)
	}
}
