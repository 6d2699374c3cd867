package udpstream

import (
	"io"
	"net"
	"testing"
	"time"

	"midori/internal/addr"
)

func TestAcceptorConnectorRoundTrip(t *testing.T) {
	a, err := addr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	acc, err := Listen(a)
	if err != nil {
		t.Fatal(err)
	}
	defer acc.Close()

	target, err := addr.Parse(acc.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		s, _, err := acc.AcceptBase()
		if err != nil {
			t.Error(err)
			return
		}
		buf := make([]byte, 1)
		if _, err := io.ReadFull(s, buf); err != nil {
			t.Error(err)
			return
		}
		if buf[0] != 'A' {
			t.Errorf("expected 'A', got %q", buf)
		}
	}()

	c := NewConnector(target)
	strm, err := c.Connect()
	if err != nil {
		t.Fatal(err)
	}
	defer strm.Close()
	if _, err := strm.Write([]byte("A")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-serverDone:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server")
	}
}

// TestAcceptorServesRawUDPPeer drives the Acceptor with a plain net.Conn
// UDP client that knows nothing about midori, matching spec scenario S5:
// the accepted Stream must carry the client's raw bytes with no added
// framing, and a reply written to the Stream must arrive back at the
// client unchanged.
func TestAcceptorServesRawUDPPeer(t *testing.T) {
	a, err := addr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	acc, err := Listen(a)
	if err != nil {
		t.Fatal(err)
	}
	defer acc.Close()

	client, err := net.Dial("udp", acc.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	s, _, err := acc.AcceptBase()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	buf := make([]byte, 16)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("expected raw payload %q, got %q", "hello", buf[:n])
	}

	if _, err := s.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err = client.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "world" {
		t.Fatalf("expected raw reply %q, got %q", "world", buf[:n])
	}
}

func TestDemuxTracksDistinctPeers(t *testing.T) {
	pConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer pConn.Close()

	d := NewDemux(pConn)
	defer d.Close()

	c1, err := net.Dial("udp", pConn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c1.Close()
	c2, err := net.Dial("udp", pConn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()

	c1.Write([]byte("A"))
	c2.Write([]byte("B"))

	if _, err := d.Accept(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Accept(); err != nil {
		t.Fatal(err)
	}

	if d.PeerCount() != 2 {
		t.Fatalf("expected 2 peers, got %d", d.PeerCount())
	}
}
