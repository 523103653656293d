// Package radio defines the boundary between the gateway core and a
// physical transceiver's PTT/CAT control. The core treats radio control
// as an opaque collaborator: it never speaks hamlib or any CAT protocol
// itself, it only calls Set before and after keying the TNC for a
// transmission that needs the radio in transmit mode (e.g. KISS running
// over a non-VOX TNC that expects the host to hold PTT).
package radio

import "log/slog"

// PTTController keys and unkeys a transmitter. Implementations are free
// to be backed by hamlib, a CAT serial link, a GPIO line, or nothing at
// all; the gateway core only ever calls Set.
type PTTController interface {
	Set(on bool) error
}

// NullController is a PTTController that does nothing, logging each
// call at debug level. It is the default when config.Radio.Enabled is
// false, or when no hamlib/CAT integration is wired for a deployment,
// i.e. whenever no physical rig is attached.
type NullController struct{}

// NewNullController returns a PTTController that performs no hardware
// access.
func NewNullController() NullController {
	slog.Info("radio control disabled, using null PTT controller")
	return NullController{}
}

// Set logs the requested PTT state and always succeeds.
func (NullController) Set(on bool) error {
	if on {
		slog.Debug("ptt on (null controller)")
	} else {
		slog.Debug("ptt off (null controller)")
	}
	return nil
}
