package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"bbsgatewayd/internal/ax25"
	"bbsgatewayd/internal/kiss"
	"bbsgatewayd/internal/link"
)

// dialTimeout bounds how long the initial Direwolf connect attempt is
// allowed to take before giving up.
const dialTimeout = 10 * time.Second

// tncKissPort is the Direwolf KISS TCP port index this gateway transmits
// and receives on. Direwolf supports several virtual ports per instance;
// port 0 is the default first channel.
const tncKissPort = 0

// TNC owns the TCP connection to a Direwolf KISS TNC: it decodes inbound
// KISS frames into AX.25 frames for the link manager, and encodes the
// link manager's outbound AX.25 frames back into KISS for the wire.
type TNC struct {
	host string
	port int
	mgr  *link.Manager

	conn net.Conn
}

// NewTNC creates a TNC that will dial host:port and wire its outbound
// sends through mgr once Dial succeeds.
func NewTNC(host string, port int, mgr *link.Manager) *TNC {
	return &TNC{host: host, port: port, mgr: mgr}
}

// Dial connects to the Direwolf KISS TCP socket and wires mgr.Send to
// transmit over it. Connection failure here is fatal to the gateway
// unless running telnet-only: KISS must be reachable before the link
// manager is handed any traffic.
func (t *TNC) Dial() error {
	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial direwolf %s: %w", addr, err)
	}
	t.conn = conn
	log.Printf("[tnc] connected to direwolf at %s", addr)

	t.mgr.Send = func(f ax25.Frame) error {
		_, err := conn.Write(kiss.Encode(tncKissPort, f.Encode()))
		return err
	}
	return nil
}

// Run pumps inbound KISS frames into the link manager until ctx is
// canceled or the connection drops. Dial must succeed first. It blocks;
// callers should run it on its own goroutine.
func (t *TNC) Run(ctx context.Context) error {
	defer t.conn.Close()

	go func() {
		<-ctx.Done()
		t.conn.Close()
	}()

	reader := kiss.NewReader(t.conn)
	for {
		_, payload, err := reader.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read kiss frame: %w", err)
		}

		frame, err := ax25.Decode(payload)
		if err != nil {
			log.Printf("[tnc] discarding unparseable AX.25 frame: %v", err)
			continue
		}

		if err := t.mgr.HandleFrame(frame); err != nil {
			log.Printf("[tnc] handle frame: %v", err)
		}
	}
}
