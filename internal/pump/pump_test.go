package pump

import (
	"io"
	"testing"
	"time"

	"midori/internal/addr"
	"midori/internal/plain"
)

func TestRunGenericCopiesBothDirectionsAndClosesOnEOF(t *testing.T) {
	a, err := addr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ln, err := plain.Listen("tcp", a)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	target, err := addr.Parse(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	serverAccepted := make(chan struct{})
	var serverSide interface {
		io.ReadWriteCloser
	}
	go func() {
		s, _, err := ln.AcceptBase()
		if err != nil {
			t.Error(err)
			return
		}
		serverSide = s
		close(serverAccepted)
	}()

	clientConn, err := plain.NewConnector("tcp", target).Connect()
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-serverAccepted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for accept")
	}

	peerA, err := addr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	peerLn, err := plain.Listen("tcp", peerA)
	if err != nil {
		t.Fatal(err)
	}
	defer peerLn.Close()

	peerTarget, err := addr.Parse(peerLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	upstreamAccepted := make(chan struct{})
	var upstreamSide interface {
		io.ReadWriteCloser
	}
	go func() {
		s, _, err := peerLn.AcceptBase()
		if err != nil {
			t.Error(err)
			return
		}
		upstreamSide = s
		close(upstreamAccepted)
	}()

	upstreamConn, err := plain.NewConnector("tcp", peerTarget).Connect()
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-upstreamAccepted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for upstream accept")
	}

	done := make(chan error, 1)
	go func() { done <- runGeneric(clientConn, upstreamConn) }()

	if _, err := serverSide.Write([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 2)
	if _, err := io.ReadFull(upstreamSide, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hi" {
		t.Fatalf("expected 'hi', got %q", buf)
	}

	if _, err := upstreamSide.Write([]byte("yo")); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadFull(serverSide, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "yo" {
		t.Fatalf("expected 'yo', got %q", buf)
	}

	serverSide.Close()
	upstreamSide.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pump to finish")
	}
}
