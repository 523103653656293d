package dispatch

import (
	"bbsgatewayd/internal/ratelimit"
	"bbsgatewayd/internal/session"
)

// authenticateCallsign resolves a directory entry (or synthesizes one on
// lookup failure — the callsign format check is the only hard
// requirement, per §4.11), marks the session authenticated, rekeys the
// telnet connection table if applicable, and sends the login banner.
func (d *Dispatcher) authenticateCallsign(station Station, callsign string) {
	cs := ratelimit.Normalize(callsign)

	var opInfo session.OperatorInfo
	if info, found := d.Directory.Lookup(cs); found {
		opInfo = session.OperatorInfo{
			FullName:   info.FullName,
			Location:   info.Country,
			GridSquare: info.Grid,
		}
	} else {
		opInfo = session.OperatorInfo{FullName: cs}
	}

	// The session is looked up by the target callsign directly, so no
	// entry ever exists under a telnet connection's pre-auth "ip:port"
	// identity — there is nothing to rekey here (see DESIGN.md).
	sess := d.Sessions.Get(cs)
	sess.Authenticate(opInfo)

	if ts, ok := station.(*telnetStation); ok {
		// Authenticate is idempotent and must run before any further
		// lookup of this connection by callsign; it rekeys the telnet
		// connection table under its own lock.
		d.TelnetServer.Authenticate(ts.conn, cs)
	}

	if id, err := d.Store.LogConnection(cs, station.Transport()); err == nil {
		d.setConnID(station.Identity(), id)
	} else {
		d.Logger.Printf("log connection for %s: %v", cs, err)
	}

	d.Activity.Add(cs, "connect", "")
	d.sendBanner(station, cs, opInfo)
}
