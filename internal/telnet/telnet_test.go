package telnet

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/net/nettest"
)

// startTestServer uses nettest's portable loopback listener rather than a
// bare net.Listen("tcp", ...) so these tests also run unmodified on
// platforms where TCP loopback is unavailable in the test sandbox.
func startTestServer(t *testing.T, srv *Server) (addr string, stop func()) {
	t.Helper()
	ln, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatalf("NewLocalListener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, ln)
	t.Cleanup(func() { cancel(); ln.Close() })
	return ln.Addr().String(), cancel
}

func TestServerDeliversLinesSplitOnAllTerminators(t *testing.T) {
	srv := NewServer(time.Minute)

	lines := make(chan string, 10)
	srv.OnData = func(c *Connection, line string) { lines <- line }

	addr, _ := startTestServer(t, srv)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("first\r\nsecond\nthird\rfourth"))

	want := []string{"first", "second", "third"}
	for _, w := range want {
		select {
		case got := <-lines:
			if got != w {
				t.Errorf("line = %q, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for line %q", w)
		}
	}
}

func TestServerFiresOnConnectAndOnDisconnect(t *testing.T) {
	srv := NewServer(time.Minute)

	connected := make(chan struct{}, 1)
	disconnected := make(chan struct{}, 1)
	srv.OnConnect = func(c *Connection) { connected <- struct{}{} }
	srv.OnDisconnect = func(c *Connection) { disconnected <- struct{}{} }

	addr, _ := startTestServer(t, srv)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnConnect")
	}

	conn.Close()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnDisconnect")
	}
}

func TestAuthenticateRekeysIdentityOnce(t *testing.T) {
	srv := NewServer(time.Minute)

	var rekeyed [][2]string
	srv.OnRekey = func(oldID, newID string) { rekeyed = append(rekeyed, [2]string{oldID, newID}) }

	connected := make(chan *Connection, 1)
	srv.OnConnect = func(c *Connection) { connected <- c }

	addr, _ := startTestServer(t, srv)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	var c *Connection
	select {
	case c = <-connected:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connection")
	}

	oldIdentity := c.Identity()
	srv.Authenticate(c, "W2ASM")
	if c.Identity() != "W2ASM" {
		t.Errorf("Identity() = %q, want W2ASM", c.Identity())
	}

	// A second Authenticate call must not rekey again.
	srv.Authenticate(c, "K0ASM")
	if c.Identity() != "W2ASM" {
		t.Errorf("Identity() changed on second Authenticate call: %q", c.Identity())
	}

	if len(rekeyed) != 1 || rekeyed[0][0] != oldIdentity || rekeyed[0][1] != "W2ASM" {
		t.Errorf("rekeyed = %v", rekeyed)
	}

	if got, ok := srv.Get("W2ASM"); !ok || got != c {
		t.Error("expected connection registered under its new callsign identity")
	}
	if _, ok := srv.Get(oldIdentity); ok {
		t.Error("expected connection removed from its old ip:port identity")
	}
}

func TestServerRepairsInvalidUTF8(t *testing.T) {
	srv := NewServer(time.Minute)

	lines := make(chan string, 1)
	srv.OnData = func(c *Connection, line string) { lines <- line }

	addr, _ := startTestServer(t, srv)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// A torn multi-byte sequence (0xC3 with no continuation byte), the
	// kind a noisy AX.25-over-KISS link or a half-duplex telnet client
	// can deliver.
	conn.Write([]byte{'h', 'i', 0xC3, '\n'})

	select {
	case got := <-lines:
		if !containsRuneError(got) {
			t.Errorf("line = %q, want a replacement character for the torn byte", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for line")
	}
}

func containsRuneError(s string) bool {
	for _, r := range s {
		if r == '�' {
			return true
		}
	}
	return false
}

func TestSweepClosesIdleConnections(t *testing.T) {
	srv := NewServer(10 * time.Millisecond)

	addr, _ := startTestServer(t, srv)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	closed := srv.Sweep()
	if len(closed) != 1 {
		t.Fatalf("Sweep() closed %d connections, want 1", len(closed))
	}
}
