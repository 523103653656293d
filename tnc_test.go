package main

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"bbsgatewayd/internal/ax25"
	"bbsgatewayd/internal/kiss"
	"bbsgatewayd/internal/link"
)

func startFakeDirewolf(t *testing.T) (host string, port int, accept func() net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}

	return host, port, func() net.Conn {
		conn, err := ln.Accept()
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		return conn
	}
}

func TestTNCDialWiresSend(t *testing.T) {
	host, port, accept := startFakeDirewolf(t)

	acceptedCh := make(chan net.Conn, 1)
	go func() { acceptedCh <- accept() }()

	mgr := link.NewManager(nil, time.Minute)
	tnc := NewTNC(host, port, mgr)
	if err := tnc.Dial(); err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tnc.conn.Close()

	if mgr.Send == nil {
		t.Fatal("Dial did not wire mgr.Send")
	}

	dst := ax25.NewAddress("CQ", 0)
	src := ax25.NewAddress("N0CALL", 0)
	frame := ax25.NewUIFrame(dst, src, []byte("hello"))
	if err := mgr.Send(frame); err != nil {
		t.Fatalf("mgr.Send: %v", err)
	}

	server := <-acceptedCh
	defer server.Close()
	server.SetReadDeadline(time.Now().Add(time.Second))

	reader := kiss.NewReader(server)
	_, payload, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	got, err := ax25.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Source.Callsign != "N0CALL" {
		t.Errorf("decoded source = %q, want N0CALL", got.Source.Callsign)
	}
}

func TestTNCDialFailureReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close() // nothing listening on port now

	mgr := link.NewManager(nil, time.Minute)
	tnc := NewTNC(host, port, mgr)
	if err := tnc.Dial(); err == nil {
		t.Fatal("expected Dial to a closed port to fail")
	}
}

func TestTNCRunDeliversFramesToManager(t *testing.T) {
	host, port, accept := startFakeDirewolf(t)

	acceptedCh := make(chan net.Conn, 1)
	go func() { acceptedCh <- accept() }()

	mgr := link.NewManager(nil, time.Minute)
	delivered := make(chan []byte, 1)
	mgr.OnData = func(key string, info []byte) { delivered <- info }

	tnc := NewTNC(host, port, mgr)
	if err := tnc.Dial(); err != nil {
		t.Fatalf("Dial: %v", err)
	}
	server := <-acceptedCh
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- tnc.Run(ctx) }()

	dst := ax25.NewAddress("N0CALL", 0)
	src := ax25.NewAddress("N1CALL", 0)
	frame := ax25.NewUIFrame(dst, src, []byte("cq cq"))
	if _, err := server.Write(kiss.Encode(tncKissPort, frame.Encode())); err != nil {
		t.Fatalf("write kiss frame: %v", err)
	}

	select {
	case info := <-delivered:
		if !strings.Contains(string(info), "cq cq") {
			t.Errorf("delivered info = %q, want to contain %q", info, "cq cq")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame to reach the link manager")
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after cancel")
	}
}
