package dispatch

import (
	"fmt"
	"strings"

	"bbsgatewayd/internal/session"
)

// renderBanner joins whichever of the gateway's identifying fields are
// configured with a bullet separator, so a bare callsign and a fully
// described station both render sensibly.
func renderBanner(callsign, description string) string {
	parts := make([]string, 0, 2)
	if callsign != "" {
		parts = append(parts, callsign)
	}
	if description != "" {
		parts = append(parts, description)
	}
	return strings.Join(parts, " • ")
}

// sendBanner assembles the post-authentication greeting: station banner,
// a recent-activity summary, an unread-mail notice, and the configured
// welcome line, terminated by the prompt.
func (d *Dispatcher) sendBanner(station Station, callsign string, opInfo session.OperatorInfo) {
	lines := []string{renderBanner(d.Config.Station.Callsign, d.Config.Station.Description)}

	if summary := d.Activity.RecentSummary(5, 60); summary != "" {
		lines = append(lines, summary)
	}

	if unread, err := d.Store.UnreadCount(callsign); err == nil && unread > 0 {
		word := "message"
		if unread != 1 {
			word = "messages"
		}
		lines = append(lines, fmt.Sprintf("You have %d new %s.", unread, word))
	}

	name := opInfo.FullName
	if name == "" {
		name = callsign
	}
	lines = append(lines, fmt.Sprintf("Welcome, %s! %s", name, d.Config.Station.WelcomeMessage))

	_ = station.Send(strings.Join(lines, "\n") + "\n> ")
}
