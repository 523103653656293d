package yapp

import (
	"sync"
	"time"
)

// Manager tracks at most one in-flight Transfer per callsign.
type Manager struct {
	mu        sync.Mutex
	transfers map[string]*Transfer
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{transfers: make(map[string]*Transfer)}
}

// StartUpload begins accepting a file from callsign and returns the
// transfer plus the ACK packet to send.
func (m *Manager) StartUpload(callsign string) (*Transfer, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := NewTransfer(callsign, true)
	ack := t.StartUpload()
	m.transfers[callsign] = t
	return t, ack
}

// StartDownload begins sending data to callsign and returns the transfer
// plus the initial ENQ packet.
func (m *Manager) StartDownload(callsign, filename string, data []byte) (*Transfer, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := NewTransfer(callsign, false)
	enq := t.StartDownload(filename, data)
	m.transfers[callsign] = t
	return t, enq
}

// Active returns the in-flight transfer for callsign, if any.
func (m *Manager) Active(callsign string) (*Transfer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[callsign]
	return t, ok
}

// HandlePacket routes an inbound packet to callsign's transfer, auto-starting
// an upload if none exists and the peer opened with ENQ. The transfer is
// removed once it reaches a terminal state.
func (m *Manager) HandlePacket(callsign string, data []byte) []byte {
	m.mu.Lock()
	t, ok := m.transfers[callsign]
	if !ok {
		if len(data) == 0 || data[0] != ENQ {
			m.mu.Unlock()
			return nil
		}
		t = NewTransfer(callsign, true)
		m.transfers[callsign] = t
		m.mu.Unlock()
		return t.StartUpload()
	}
	m.mu.Unlock()

	reply := t.HandlePacket(data)

	if t.IsComplete() || t.IsError() {
		m.mu.Lock()
		delete(m.transfers, callsign)
		m.mu.Unlock()
	}
	return reply
}

// CancelTransfer cancels and removes callsign's transfer, if any, returning
// the CAN packet to send.
func (m *Manager) CancelTransfer(callsign string) []byte {
	m.mu.Lock()
	t, ok := m.transfers[callsign]
	if ok {
		delete(m.transfers, callsign)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return t.Cancel()
}

// CleanupTimeouts purges transfers idle longer than Timeout, returning the
// callsigns removed.
func (m *Manager) CleanupTimeouts() []string {
	now := time.Now()
	var expired []string
	var transfers []*Transfer
	m.mu.Lock()
	for cs, t := range m.transfers {
		if t.IsTimedOut(now) {
			expired = append(expired, cs)
			transfers = append(transfers, t)
			delete(m.transfers, cs)
		}
	}
	m.mu.Unlock()
	for _, t := range transfers {
		t.fail("timeout", false)
	}
	return expired
}
