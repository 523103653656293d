// Package link implements the AX.25 connection table: SABM/UA/DISC/DM
// handshaking, UI-frame payload fan-out, and YAPP transfer plumbing.
package link

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bbsgatewayd/internal/ax25"
	"bbsgatewayd/internal/yapp"
)

// ConnState is an AxConnection's lifecycle state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Disconnecting
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Disconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// AxConnection is one peer's connected-mode bookkeeping.
type AxConnection struct {
	Remote       ax25.Address
	Local        ax25.Address
	State        ConnState
	ConnectedAt  time.Time
	LastActivity time.Time
	PacketsRx    int
	PacketsTx    int
	InYapp       bool
}

// Key returns the connection table key for an address: "CALL-SSID".
func Key(a ax25.Address) string {
	return fmt.Sprintf("%s-%d", a.Callsign, a.SSID)
}

// Sender transmits a fully framed AX.25 frame, e.g. over KISS to the TNC.
type Sender func(f ax25.Frame) error

// Manager owns the AX.25 connection table and YAPP transfer manager for
// one station.
type Manager struct {
	mu          sync.Mutex
	connections map[string]*AxConnection
	yapp        *yapp.Manager

	Send        Sender
	IdleTimeout time.Duration

	OnConnect    func(key string)
	OnDisconnect func(key string)
	OnData       func(key string, info []byte)
}

// NewManager creates a Manager. idleTimeout bounds how long a connection
// may sit without activity before the background sweep reaps it.
func NewManager(send Sender, idleTimeout time.Duration) *Manager {
	return &Manager{
		connections: make(map[string]*AxConnection),
		yapp:        yapp.NewManager(),
		Send:        send,
		IdleTimeout: idleTimeout,
	}
}

// HandleFrame processes one inbound AX.25 frame per the handshake rules:
// SABM connects, DISC disconnects, UI fans out data (with or without a
// prior SABM), and any other frame in connected mode either routes to an
// active YAPP transfer or falls through to OnData; absent a connection it
// draws a DM.
func (m *Manager) HandleFrame(f ax25.Frame) error {
	switch {
	case f.IsSABM():
		return m.handleSABM(f)
	case f.IsDISC():
		return m.handleDISC(f)
	case f.IsUI():
		return m.handleUI(f)
	case f.IsUA(), f.IsDM():
		// Replies to our own frames; nothing to do if one arrives inbound.
		return nil
	default:
		return m.handleOther(f)
	}
}

func (m *Manager) handleSABM(f ax25.Frame) error {
	key := Key(f.Source)
	now := time.Now()

	m.mu.Lock()
	m.connections[key] = &AxConnection{
		Remote:       f.Source,
		Local:        f.Destination,
		State:        Connected,
		ConnectedAt:  now,
		LastActivity: now,
	}
	m.mu.Unlock()

	slog.Info("ax25 connection established", "peer", key)
	if m.OnConnect != nil {
		m.OnConnect(key)
	}
	// The UA's source is the exact destination addressed by the SABM, so
	// multi-SSID aliasing (the station answering under more than one SSID)
	// works without extra bookkeeping.
	return m.send(ax25.NewUAFrame(f.Source, f.Destination))
}

func (m *Manager) handleDISC(f ax25.Frame) error {
	key := Key(f.Source)

	m.mu.Lock()
	delete(m.connections, key)
	m.mu.Unlock()

	slog.Info("ax25 connection closed", "peer", key)
	if m.OnDisconnect != nil {
		m.OnDisconnect(key)
	}
	return m.send(ax25.NewUAFrame(f.Source, f.Destination))
}

func (m *Manager) handleUI(f ax25.Frame) error {
	key := Key(f.Source)
	m.touchOrSynthesize(key, f)
	if m.OnData != nil {
		m.OnData(key, f.Info)
	}
	return nil
}

func (m *Manager) handleOther(f ax25.Frame) error {
	key := Key(f.Source)

	m.mu.Lock()
	conn, ok := m.connections[key]
	if ok {
		conn.LastActivity = time.Now()
		conn.PacketsRx++
	}
	inYapp := ok && conn.InYapp
	m.mu.Unlock()

	if !ok {
		return m.send(ax25.NewDMFrame(f.Source, f.Destination))
	}
	if inYapp {
		reply := m.yapp.HandlePacket(key, f.Info)
		if reply == nil {
			return nil
		}
		return m.SendUI(key, reply)
	}
	if m.OnData != nil {
		m.OnData(key, f.Info)
	}
	return nil
}

// touchOrSynthesize updates an existing connection's activity timestamp,
// or creates a transient one for a UI frame received without a prior SABM.
func (m *Manager) touchOrSynthesize(key string, f ax25.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[key]
	if !ok {
		conn = &AxConnection{
			Remote:       f.Source,
			Local:        f.Destination,
			State:        Connected,
			ConnectedAt:  time.Now(),
		}
		m.connections[key] = conn
	}
	conn.LastActivity = time.Now()
	conn.PacketsRx++
}

// SendUI transmits info as a single UI frame addressed to key's peer.
func (m *Manager) SendUI(key string, info []byte) error {
	m.mu.Lock()
	conn, ok := m.connections[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no connection for %s", key)
	}

	m.mu.Lock()
	conn.PacketsTx++
	m.mu.Unlock()

	return m.send(ax25.NewUIFrame(conn.Remote, conn.Local, info))
}

func (m *Manager) send(f ax25.Frame) error {
	if m.Send == nil {
		return nil
	}
	return m.Send(f)
}

// StartYappUpload begins an upload transfer for key (peer is sending a
// file to us) and transmits the initial ACK.
func (m *Manager) StartYappUpload(key string) error {
	m.setInYapp(key, true)
	_, ack := m.yapp.StartUpload(key)
	return m.SendUI(key, ack)
}

// StartYappDownload begins a download transfer for key (peer is
// requesting a file from us) and transmits the initial ENQ.
func (m *Manager) StartYappDownload(key, filename string, data []byte) error {
	m.setInYapp(key, true)
	_, enq := m.yapp.StartDownload(key, filename, data)
	return m.SendUI(key, enq)
}

func (m *Manager) setInYapp(key string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.connections[key]; ok {
		conn.InYapp = active
	}
}

// YappTransfer returns the active transfer for key, if any.
func (m *Manager) YappTransfer(key string) (*yapp.Transfer, bool) {
	return m.yapp.Active(key)
}

// Disconnect tears down key's connection, sending a DISC to the peer.
func (m *Manager) Disconnect(key string) error {
	m.mu.Lock()
	conn, ok := m.connections[key]
	if ok {
		delete(m.connections, key)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no connection for %s", key)
	}

	slog.Info("ax25 connection disconnected by gateway", "peer", key)
	if m.OnDisconnect != nil {
		m.OnDisconnect(key)
	}
	return m.send(ax25.NewDISCFrame(conn.Remote, conn.Local))
}

// Get returns a snapshot of the connection for key.
func (m *Manager) Get(key string) (AxConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[key]
	if !ok {
		return AxConnection{}, false
	}
	return *conn, true
}

// Count returns the number of active connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// Sweep reaps connections idle past IdleTimeout and YAPP transfers idle
// past their own 30s timeout, returning the reaped connection keys.
func (m *Manager) Sweep() []string {
	now := time.Now()

	m.mu.Lock()
	var stale []string
	for key, conn := range m.connections {
		if conn.InYapp {
			continue
		}
		if now.Sub(conn.LastActivity) > m.IdleTimeout {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(m.connections, key)
	}
	m.mu.Unlock()

	for _, key := range stale {
		slog.Info("reaped idle ax25 connection", "peer", key)
		if m.OnDisconnect != nil {
			m.OnDisconnect(key)
		}
	}

	for _, key := range m.yapp.CleanupTimeouts() {
		m.setInYapp(key, false)
		slog.Info("reaped stale yapp transfer", "peer", key)
	}

	return stale
}
