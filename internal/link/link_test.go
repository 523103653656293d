package link

import (
	"testing"
	"time"

	"bbsgatewayd/internal/ax25"
)

func addrs() (remote, local ax25.Address) {
	return ax25.NewAddress("W1ABC", 0), ax25.NewAddress("W2ASM", 10)
}

func TestSABMCreatesConnectionAndRepliesUA(t *testing.T) {
	remote, local := addrs()
	var sent []ax25.Frame
	m := NewManager(func(f ax25.Frame) error {
		sent = append(sent, f)
		return nil
	}, time.Minute)

	var connected string
	m.OnConnect = func(key string) { connected = key }

	sabm := ax25.NewSABMFrame(local, remote)
	if err := m.HandleFrame(sabm); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	if connected != Key(remote) {
		t.Errorf("OnConnect key = %q, want %q", connected, Key(remote))
	}
	if len(sent) != 1 || !sent[0].IsUA() {
		t.Fatalf("expected one UA frame, got %+v", sent)
	}
	if sent[0].Destination != remote || sent[0].Source != local {
		t.Errorf("UA addressing = %+v", sent[0])
	}

	conn, ok := m.Get(Key(remote))
	if !ok || conn.State != Connected {
		t.Fatalf("expected connected AxConnection, got %+v ok=%v", conn, ok)
	}
}

func TestDISCDropsConnectionAndRepliesUA(t *testing.T) {
	remote, local := addrs()
	var sent []ax25.Frame
	m := NewManager(func(f ax25.Frame) error { sent = append(sent, f); return nil }, time.Minute)

	var disconnected string
	m.OnDisconnect = func(key string) { disconnected = key }

	_ = m.HandleFrame(ax25.NewSABMFrame(local, remote))
	if err := m.HandleFrame(ax25.NewDISCFrame(local, remote)); err != nil {
		t.Fatalf("HandleFrame(DISC): %v", err)
	}

	if disconnected != Key(remote) {
		t.Errorf("OnDisconnect key = %q", disconnected)
	}
	if _, ok := m.Get(Key(remote)); ok {
		t.Error("expected connection removed after DISC")
	}
	if len(sent) != 2 || !sent[1].IsUA() {
		t.Fatalf("expected UA reply to DISC, got %+v", sent)
	}
}

func TestUIWithoutPriorSABMSynthesizesConnectionAndFiresOnData(t *testing.T) {
	remote, local := addrs()
	m := NewManager(func(ax25.Frame) error { return nil }, time.Minute)

	var gotKey string
	var gotInfo []byte
	m.OnData = func(key string, info []byte) { gotKey, gotInfo = key, info }

	ui := ax25.NewUIFrame(local, remote, []byte("hello\r"))
	if err := m.HandleFrame(ui); err != nil {
		t.Fatalf("HandleFrame(UI): %v", err)
	}

	if gotKey != Key(remote) || string(gotInfo) != "hello\r" {
		t.Errorf("OnData(%q, %q)", gotKey, gotInfo)
	}
	if _, ok := m.Get(Key(remote)); !ok {
		t.Error("expected a synthesized connection after unsolicited UI")
	}
}

func TestOtherFrameWithoutConnectionRepliesDM(t *testing.T) {
	remote, local := addrs()
	var sent []ax25.Frame
	m := NewManager(func(f ax25.Frame) error { sent = append(sent, f); return nil }, time.Minute)

	// A non-UI, non-SABM/DISC/UA/DM frame without a connection.
	f := ax25.Frame{Destination: local, Source: remote, Control: 0x13, PID: 0xF0, Info: []byte("x")}
	if err := m.HandleFrame(f); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if len(sent) != 1 || !sent[0].IsDM() {
		t.Fatalf("expected DM reply, got %+v", sent)
	}
}

func TestSweepReapsIdleConnections(t *testing.T) {
	remote, local := addrs()
	m := NewManager(func(ax25.Frame) error { return nil }, 10*time.Millisecond)

	var disconnected string
	m.OnDisconnect = func(key string) { disconnected = key }

	_ = m.HandleFrame(ax25.NewSABMFrame(local, remote))
	time.Sleep(20 * time.Millisecond)

	reaped := m.Sweep()
	if len(reaped) != 1 || reaped[0] != Key(remote) {
		t.Fatalf("reaped = %v", reaped)
	}
	if disconnected != Key(remote) {
		t.Errorf("expected OnDisconnect fired during sweep, got %q", disconnected)
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d after sweep, want 0", m.Count())
	}
}

func TestYappUploadFlowThroughManager(t *testing.T) {
	remote, local := addrs()
	var sent []ax25.Frame
	m := NewManager(func(f ax25.Frame) error { sent = append(sent, f); return nil }, time.Minute)

	_ = m.HandleFrame(ax25.NewSABMFrame(local, remote))
	key := Key(remote)

	if err := m.StartYappUpload(key); err != nil {
		t.Fatalf("StartYappUpload: %v", err)
	}
	if len(sent) != 2 || !sent[1].IsUI() {
		t.Fatalf("expected UI ACK after SABM's UA, got %+v", sent)
	}

	conn, _ := m.Get(key)
	if !conn.InYapp {
		t.Error("expected InYapp after StartYappUpload")
	}

	if _, ok := m.YappTransfer(key); !ok {
		t.Error("expected an active transfer")
	}
}
