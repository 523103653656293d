// Package telnet serves plain-text bulletin-board sessions over RFC 854
// telnet, sniffing RFC 1572 NEW_ENVIRON for a callsign hint and
// line-buffering input for the dispatcher.
package telnet

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8Repair replaces invalid UTF-8 byte sequences with the Unicode
// replacement character, the same way a decoded-then-reencoded round
// trip would: packet-radio links and noisy telnet clients occasionally
// deliver a torn multi-byte sequence, and the dispatcher should never
// see raw invalid bytes in a line.
var utf8Repair = unicode.UTF8.NewDecoder()

func repairUTF8(raw []byte) string {
	repaired, _, err := transform.Bytes(utf8Repair, raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(repaired)
}

// Connection is one telnet peer's bookkeeping. Identity starts as
// "ip:port" and mutates exactly once to a callsign upon authentication.
type Connection struct {
	mu sync.Mutex

	conn         *conn
	PeerAddr     string
	identity     string
	Callsign     string
	ConnectedAt  time.Time
	LastActivity time.Time
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.LastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Connection) idleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.LastActivity)
}

// Identity returns the connection's current lookup key ("ip:port" until
// authenticated, the callsign afterward).
func (c *Connection) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Environ returns the NEW_ENVIRON variables (e.g. USER, LOGNAME) reported
// by the client during negotiation, per RFC 1572.
func (c *Connection) Environ() map[string]string {
	return c.conn.Environ()
}

// Write sends data to the peer, appending nothing; callers control
// line endings.
func (c *Connection) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// Server accepts telnet connections and dispatches complete lines to
// OnData. OnRekey fires once per connection, the moment its identity
// moves from ip:port to a callsign (P6); it fires after the connection
// table has been rekeyed and its lock released, so callers can rekey
// their own per-identity state.
type Server struct {
	mu          sync.Mutex
	connections map[string]*Connection

	IdleTimeout time.Duration

	OnConnect    func(c *Connection)
	OnData       func(c *Connection, line string)
	OnDisconnect func(c *Connection)
	OnRekey      func(oldIdentity, newIdentity string)
}

// NewServer creates a Server with the given idle timeout.
func NewServer(idleTimeout time.Duration) *Server {
	return &Server{
		connections: make(map[string]*Connection),
		IdleTimeout: idleTimeout,
	}
}

// Serve accepts connections on ln until ctx is canceled, handling each on
// its own goroutine. It blocks until the listener closes.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("telnet server listening", "addr", ln.Addr().String())
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			slog.Error("telnet accept failed", "err", err)
			return err
		}
		go s.handle(nc)
	}
}

func (s *Server) handle(nc net.Conn) {
	tc := newConn(nc)
	if err := tc.RequestEnviron(); err != nil {
		slog.Debug("telnet environ negotiation failed", "err", err)
	}

	peer := nc.RemoteAddr().String()
	now := time.Now()
	c := &Connection{
		conn:         tc,
		PeerAddr:     peer,
		identity:     peer,
		ConnectedAt:  now,
		LastActivity: now,
	}

	s.mu.Lock()
	s.connections[peer] = c
	s.mu.Unlock()

	slog.Info("telnet connection accepted", "peer", peer)
	if s.OnConnect != nil {
		s.OnConnect(c)
	}

	defer func() {
		s.mu.Lock()
		delete(s.connections, c.Identity())
		s.mu.Unlock()
		nc.Close()
		slog.Info("telnet connection closed", "peer", peer)
		if s.OnDisconnect != nil {
			s.OnDisconnect(c)
		}
	}()

	s.readLines(c)
}

// readLines buffers input and fires OnData on each complete line, split
// on \r\n, \n, or \r.
func (s *Server) readLines(c *Connection) {
	r := bufio.NewReader(c.conn)
	var line bytes.Buffer

	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		c.touch()

		switch b {
		case '\n':
			s.deliver(c, &line)
		case '\r':
			s.deliver(c, &line)
			// Swallow a following \n of a \r\n pair without emitting a
			// second, empty line.
			if next, err := r.Peek(1); err == nil && len(next) == 1 && next[0] == '\n' {
				r.ReadByte()
			}
		default:
			line.WriteByte(b)
		}
	}
}

func (s *Server) deliver(c *Connection, line *bytes.Buffer) {
	text := repairUTF8(line.Bytes())
	line.Reset()
	if s.OnData != nil {
		s.OnData(c, text)
	}
}

// Authenticate moves conn's identity from "ip:port" to callsign,
// rekeying the connection table and firing OnRekey so callers can rekey
// their own session table under the same notification (P6).
func (s *Server) Authenticate(c *Connection, callsign string) {
	c.mu.Lock()
	oldIdentity := c.identity
	if c.Callsign != "" {
		c.mu.Unlock()
		return // already authenticated; identity mutates exactly once
	}
	c.Callsign = callsign
	c.identity = callsign
	c.mu.Unlock()

	s.mu.Lock()
	delete(s.connections, oldIdentity)
	s.connections[callsign] = c
	s.mu.Unlock()

	if s.OnRekey != nil {
		s.OnRekey(oldIdentity, callsign)
	}
}

// Get returns the connection registered under identity.
func (s *Server) Get(identity string) (*Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[identity]
	return c, ok
}

// Count returns the number of active connections.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// Sweep closes connections idle past IdleTimeout, returning their
// identities.
func (s *Server) Sweep() []string {
	s.mu.Lock()
	var stale []*Connection
	for _, c := range s.connections {
		if c.idleFor() > s.IdleTimeout {
			stale = append(stale, c)
		}
	}
	s.mu.Unlock()

	var closed []string
	for _, c := range stale {
		closed = append(closed, c.Identity())
		c.Close()
	}
	return closed
}
