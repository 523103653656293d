// Package activity tracks a bounded, in-memory feed of recent BBS actions
// for display on connection and via the status command.
package activity

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var actionDescriptions = map[string]string{
	"query":        "asked a question",
	"message_sent": "sent a message",
	"message_read": "read mail",
	"pota":         "got POTA spots",
	"search":       "searched the web",
	"connect":      "connected",
	"disconnect":   "disconnected",
	"file":         "shared a file",
	"chat":         "posted in chat",
}

func describe(action, details string) string {
	if action == "lookup" {
		if details != "" {
			return "looked up " + details
		}
		return "looked up callsign"
	}
	if d, ok := actionDescriptions[action]; ok {
		return d
	}
	return action
}

func formatAge(age time.Duration) string {
	seconds := int(age.Seconds())
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	default:
		return fmt.Sprintf("%dd ago", seconds/86400)
	}
}

type entry struct {
	callsign  string
	action    string
	details   string
	timestamp time.Time
}

// Feed is a bounded, thread-safe log of recent activity, oldest evicted
// once max_items is exceeded.
type Feed struct {
	mu       sync.Mutex
	maxItems int
	entries  []entry
}

// New creates a Feed retaining at most maxItems entries.
func New(maxItems int) *Feed {
	if maxItems <= 0 {
		maxItems = 50
	}
	return &Feed{maxItems: maxItems}
}

// Add records one activity, evicting the oldest entry if the feed is full.
func (f *Feed) Add(callsign, action, details string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, entry{
		callsign:  callsign,
		action:    action,
		details:   details,
		timestamp: time.Now(),
	})
	if len(f.entries) > f.maxItems {
		f.entries = f.entries[len(f.entries)-f.maxItems:]
	}
}

// RecentSummary returns a one-line summary of the maxItems most recent
// activities within the trailing maxAgeMinutes, newest first.
func (f *Feed) RecentSummary(maxItems, maxAgeMinutes int) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.entries) == 0 {
		return "No recent activity"
	}

	cutoff := time.Now().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	var recent []entry
	for _, e := range f.entries {
		if !e.timestamp.Before(cutoff) {
			recent = append(recent, e)
		}
	}
	if len(recent) == 0 {
		return "No recent activity"
	}

	if len(recent) > maxItems {
		recent = recent[len(recent)-maxItems:]
	}

	parts := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		age := formatAge(time.Since(e.timestamp))
		parts = append(parts, fmt.Sprintf("%s %s %s", e.callsign, describe(e.action, e.details), age))
	}
	return "Recent: " + strings.Join(parts, ", ")
}

// Count returns the number of activities within the trailing
// maxAgeMinutes.
func (f *Feed) Count(maxAgeMinutes int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	n := 0
	for _, e := range f.entries {
		if !e.timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}

// ActiveUsers returns the distinct callsigns active within the trailing
// maxAgeMinutes.
func (f *Feed) ActiveUsers(maxAgeMinutes int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	seen := make(map[string]bool)
	var out []string
	for _, e := range f.entries {
		if e.timestamp.Before(cutoff) || seen[e.callsign] {
			continue
		}
		seen[e.callsign] = true
		out = append(out, e.callsign)
	}
	return out
}
