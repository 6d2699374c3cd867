//go:build linux

package pump

import (
	"io"
	"testing"
	"time"

	"midori/internal/addr"
	"midori/internal/plain"
	"midori/internal/stream"
)

// TestTrySpliceHalfClosesOnEOF drives two plain TCP streams through the
// splice fast path and checks that closing one direction's write side
// propagates as a read-EOF on the peer, without killing the reverse
// direction (spec §4.9).
func TestTrySpliceHalfClosesOnEOF(t *testing.T) {
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

	accepted := make(chan stream.Stream, 1)
	go func() {
		s, _, err := ln.AcceptBase()
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- s
	}()

	client, err := plain.NewConnector("tcp", target).Connect()
	if err != nil {
		t.Fatal(err)
	}

	var server stream.Stream
	select {
	case server = <-accepted:
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

	upAccepted := make(chan stream.Stream, 1)
	go func() {
		s, _, err := peerLn.AcceptBase()
		if err != nil {
			t.Error(err)
			return
		}
		upAccepted <- s
	}()

	upstream, err := plain.NewConnector("tcp", peerTarget).Connect()
	if err != nil {
		t.Fatal(err)
	}

	var up stream.Stream
	select {
	case up = <-upAccepted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for upstream accept")
	}

	errCh := make(chan error, 1)
	spliceApplied := make(chan bool, 1)
	go func() {
		err, ok := trySplice(client, upstream)
		spliceApplied <- ok
		errCh <- err
	}()

	if _, err := server.Write([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 2)
	if _, err := io.ReadFull(up, buf); err != nil {
		t.Fatal(err)
	}

	server.CloseWrite()

	if _, err := io.ReadFull(up, make([]byte, 1)); err != io.EOF && err != io.ErrUnexpectedEOF {
		t.Fatalf("expected upstream to observe EOF after server half-close, got %v", err)
	}

	if _, err := up.Write([]byte("ok")); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "ok" {
		t.Fatalf("expected reverse direction to still carry %q, got %q", "ok", buf)
	}

	up.Close()

	select {
	case ok := <-spliceApplied:
		if !ok {
			t.Fatal("expected splice fast path to apply to two plain tcp streams")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting to know whether splice applied")
	}
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for splice to finish")
	}
}
