package wslayer

import (
	"io"
	"testing"
	"time"

	"midori/internal/addr"
	"midori/internal/conf"
	"midori/internal/plain"
)

func TestClientServerRoundTrip(t *testing.T) {
	a, err := addr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base, err := plain.Listen("tcp", a)
	if err != nil {
		t.Fatal(err)
	}
	defer base.Close()

	trans := conf.Trans{Proto: conf.ProtoWS, Path: "/relay"}
	listener := WrapListener(base, trans)

	serverErr := make(chan error, 1)
	go func() {
		raw, _, err := listener.AcceptBase()
		if err != nil {
			serverErr <- err
			return
		}
		s, err := listener.Accept(raw)
		if err != nil {
			serverErr <- err
			return
		}
		buf := make([]byte, 5)
		if _, err := io.ReadFull(s, buf); err != nil {
			serverErr <- err
			return
		}
		if string(buf) != "hello" {
			serverErr <- io.ErrUnexpectedEOF
			return
		}
		serverErr <- nil
	}()

	target, err := addr.Parse(base.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	connector := NewConnector(plain.NewConnector("tcp", target), target, trans, false)
	strm, err := connector.Connect()
	if err != nil {
		t.Fatal(err)
	}
	defer strm.Close()
	if _, err := strm.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server")
	}
}

func TestListenerRejectsMismatchedPath(t *testing.T) {
	a, err := addr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base, err := plain.Listen("tcp", a)
	if err != nil {
		t.Fatal(err)
	}
	defer base.Close()

	trans := conf.Trans{Proto: conf.ProtoWS, Path: "/relay"}
	listener := WrapListener(base, trans)

	target, err := addr.Parse(base.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		raw, _, err := listener.AcceptBase()
		if err != nil {
			return
		}
		if _, err := listener.Accept(raw); err == nil {
			t.Error("expected path mismatch error")
		}
	}()

	wrongTrans := conf.Trans{Proto: conf.ProtoWS, Path: "/other"}
	connector := NewConnector(plain.NewConnector("tcp", target), target, wrongTrans, false)
	_, err = connector.Connect()
	if err == nil {
		t.Fatal("expected handshake failure for mismatched path")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server")
	}
}
