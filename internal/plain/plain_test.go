package plain

import (
	"io"
	"testing"

	"midori/internal/addr"
)

func TestListenAndConnectRoundTrip(t *testing.T) {
	a, err := addr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ln, err := Listen("tcp", a)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	target, err := addr.Parse(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s, _, err := ln.AcceptBase()
		if err != nil {
			t.Error(err)
			return
		}
		buf := make([]byte, 5)
		if _, err := io.ReadFull(s, buf); err != nil {
			t.Error(err)
			return
		}
		if string(buf) != "hello" {
			t.Errorf("expected hello, got %q", buf)
		}
		s.Close()
	}()

	c := NewConnector("tcp", target)
	conn, err := c.Connect()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	conn.Close()
	<-done
}

func TestListenRejectsDomainAddr(t *testing.T) {
	a, err := addr.Parse("example.com:80")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Listen("tcp", a); err == nil {
		t.Fatal("expected error listening on a domain address")
	}
}
