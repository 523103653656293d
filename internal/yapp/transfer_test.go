package yapp

import (
	"bytes"
	"testing"
)

// TestUploadFlow exercises the S5 scenario: peer ENQ/SOH+header/STX+data.
func TestUploadFlow(t *testing.T) {
	tr := NewTransfer("W2ASM", true)

	ack := tr.StartUpload()
	if !bytes.Equal(ack, []byte{ACK}) {
		t.Fatalf("StartUpload reply = %v", ack)
	}
	if tr.State() != WAIT_ACK {
		t.Fatalf("state = %s, want WAIT_ACK", tr.State())
	}

	header := EncodeHeader(Header{Filename: "test.txt", FileSize: 5})
	reply := tr.HandlePacket(append([]byte{SOH}, header...))
	if !bytes.Equal(reply, []byte{ACK}) {
		t.Fatalf("header reply = %v", reply)
	}
	if tr.State() != RECV_DATA {
		t.Fatalf("state = %s, want RECV_DATA", tr.State())
	}

	block := make([]byte, BlockSize)
	copy(block, []byte("hello"))
	var completed []byte
	tr.OnComplete = func(h Header, data []byte) { completed = data }

	reply = tr.HandlePacket(append([]byte{STX}, block...))
	if !bytes.Equal(reply, []byte{ACK}) {
		t.Fatalf("data reply = %v", reply)
	}
	if !tr.IsComplete() {
		t.Fatalf("state = %s, want COMPLETE", tr.State())
	}
	if string(completed) != "hello" {
		t.Errorf("completed payload = %q, want %q", completed, "hello")
	}
}

func TestDownloadFlowWithRetry(t *testing.T) {
	tr := NewTransfer("K0ASM", false)
	data := bytes.Repeat([]byte{0x41}, 130) // two blocks

	enq := tr.StartDownload("a.bin", data)
	if !bytes.Equal(enq, []byte{ENQ}) {
		t.Fatalf("StartDownload reply = %v", enq)
	}

	reply := tr.HandlePacket([]byte{ACK})
	if reply[0] != SOH {
		t.Fatalf("expected header packet, got %v", reply[:1])
	}

	// NAK the header once; expect a retransmit of the same header.
	retry := tr.HandlePacket([]byte{NAK})
	if retry[0] != SOH {
		t.Fatalf("expected header retransmit, got %v", retry[:1])
	}

	reply = tr.HandlePacket([]byte{ACK})
	if reply[0] != STX {
		t.Fatalf("expected first data block, got %v", reply[:1])
	}

	reply = tr.HandlePacket([]byte{ACK})
	if reply[0] != STX {
		t.Fatalf("expected second data block, got %v", reply[:1])
	}

	reply = tr.HandlePacket([]byte{ACK})
	if !bytes.Equal(reply, []byte{ETX}) {
		t.Fatalf("expected ETX after final ack, got %v", reply)
	}
	if !tr.IsComplete() {
		t.Fatalf("state = %s, want COMPLETE", tr.State())
	}
}

func TestTooManyRetriesCancels(t *testing.T) {
	tr := NewTransfer("K0ASM", false)
	tr.StartDownload("a.bin", []byte("hi"))
	tr.HandlePacket([]byte{ACK}) // -> SEND_HDR: header sent, NAKs below hit the header

	var errReason string
	tr.OnError = func(reason string) { errReason = reason }

	for i := 0; i < MaxRetries+1; i++ {
		tr.HandlePacket([]byte{NAK})
	}
	if !tr.IsError() {
		t.Fatalf("state = %s, want ERROR", tr.State())
	}
	if errReason == "" {
		t.Error("expected OnError to fire")
	}
}

func TestCancelPacketAbortsTransfer(t *testing.T) {
	tr := NewTransfer("W2ASM", true)
	tr.StartUpload()
	reply := tr.HandlePacket([]byte{CAN})
	if reply != nil {
		t.Errorf("CAN reply = %v, want nil (no reply sent)", reply)
	}
	if !tr.IsError() {
		t.Fatalf("state = %s, want ERROR", tr.State())
	}
}

func TestManagerAutoAcceptsPeerInitiatedUpload(t *testing.T) {
	m := NewManager()
	reply := m.HandlePacket("W2ASM", []byte{ENQ})
	if !bytes.Equal(reply, []byte{ACK}) {
		t.Fatalf("auto-accept reply = %v", reply)
	}
	if _, ok := m.Active("W2ASM"); !ok {
		t.Fatal("expected an active transfer after auto-accept")
	}
}

func TestManagerRemovesTransferOnCompletion(t *testing.T) {
	m := NewManager()
	m.HandlePacket("W2ASM", []byte{ENQ})
	header := EncodeHeader(Header{Filename: "a.txt", FileSize: 2})
	m.HandlePacket("W2ASM", append([]byte{SOH}, header...))
	block := make([]byte, BlockSize)
	copy(block, []byte("hi"))
	m.HandlePacket("W2ASM", append([]byte{STX}, block...))

	if _, ok := m.Active("W2ASM"); ok {
		t.Error("expected transfer to be removed after completion")
	}
}
