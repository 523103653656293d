package kiss

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("hello"),
		{},
		{FEND},
		{FESC},
		{FEND, FESC, FEND, FESC},
		bytes.Repeat([]byte{0xC0, 0xDB, 0x41}, 50),
	}

	for _, payload := range cases {
		for _, port := range []int{0, 1, 15} {
			frame := Encode(port, payload)
			r := NewReader(bytes.NewReader(frame))
			gotPort, gotPayload, err := r.ReadFrame()
			if err != nil {
				t.Fatalf("port=%d payload=%v: ReadFrame: %v", port, payload, err)
			}
			if gotPort != port {
				t.Errorf("port = %d, want %d", gotPort, port)
			}
			if !bytes.Equal(gotPayload, payload) {
				t.Errorf("payload = %v, want %v", gotPayload, payload)
			}
		}
	}
}

func TestReadFrameSkipsLoneFEND(t *testing.T) {
	// Two consecutive FENDs (an empty frame) followed by a real frame.
	var buf bytes.Buffer
	buf.WriteByte(FEND)
	buf.Write(Encode(0, []byte("after")))

	r := NewReader(&buf)
	_, payload, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(payload) != "after" {
		t.Errorf("payload = %q, want %q", payload, "after")
	}
}

func TestReadFrameResyncsAfterProtocolError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(FEND)
	buf.WriteByte(CmdDataFrame)
	buf.Write([]byte{FESC, 0x41}) // invalid escape target
	buf.WriteByte(FEND)
	buf.Write(Encode(0, []byte("next")))

	r := NewReader(&buf)
	if _, _, err := r.ReadFrame(); err == nil {
		t.Fatal("expected protocol error on malformed escape")
	}
	_, payload, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame after resync: %v", err)
	}
	if string(payload) != "next" {
		t.Errorf("payload = %q, want %q", payload, "next")
	}
}

func TestEncodeCommandIsWriteOnly(t *testing.T) {
	frame := EncodeCommand(0, CmdTXDelay, 50)
	want := []byte{FEND, CmdTXDelay, 50, FEND}
	if !bytes.Equal(frame, want) {
		t.Errorf("EncodeCommand = %v, want %v", frame, want)
	}
}
