package tlslayer

import (
	"io"
	"testing"
	"time"

	"midori/internal/addr"
	"midori/internal/conf"
	"midori/internal/plain"
)

func TestClientServerHandshakeRoundTrip(t *testing.T) {
	a, err := addr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base, err := plain.Listen("tcp", a)
	if err != nil {
		t.Fatal(err)
	}
	defer base.Close()

	serverCfg, err := BuildServerConfig(conf.TLS{
		Mode: conf.TLSServer,
		Cert: "same-path-triggers-self-signed",
		Key:  "same-path-triggers-self-signed",
	})
	if err != nil {
		t.Fatal(err)
	}
	listener := WrapListener(base, serverCfg)

	serverDone := make(chan error, 1)
	go func() {
		raw, _, err := listener.AcceptBase()
		if err != nil {
			serverDone <- err
			return
		}
		s, err := listener.Accept(raw)
		if err != nil {
			serverDone <- err
			return
		}
		buf := make([]byte, 1)
		if _, err := io.ReadFull(s, buf); err != nil {
			serverDone <- err
			return
		}
		if buf[0] != 'Q' {
			serverDone <- io.ErrUnexpectedEOF
			return
		}
		serverDone <- nil
	}()

	target, err := addr.Parse(base.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	clientCfg, err := BuildClientConfig(conf.TLS{
		Mode:       conf.TLSClient,
		SkipVerify: true,
	}, target)
	if err != nil {
		t.Fatal(err)
	}

	connector := WrapConnector(plain.NewConnector("tcp", target), clientCfg)
	strm, err := connector.Connect()
	if err != nil {
		t.Fatal(err)
	}
	defer strm.Close()
	if _, err := strm.Write([]byte("Q")); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-serverDone:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server handshake")
	}
}

func TestParseVersionsRejectsUnknown(t *testing.T) {
	if _, err := parseVersions([]string{"1.1"}); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestParseVersionsDefaultsToBoth(t *testing.T) {
	versions, err := parseVersions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 default versions, got %d", len(versions))
	}
}
