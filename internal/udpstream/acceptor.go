package udpstream

import (
	"fmt"
	"net"

	"midori/internal/addr"
	"midori/internal/flog"
	"midori/internal/stream"
)

const socketBufSize = 8 * 1024 * 1024

// Acceptor owns one bound UDP socket and demultiplexes incoming datagrams
// into per-peer pseudo-streams (spec §4.3).
type Acceptor struct {
	pConn net.PacketConn
	demux *Demux
}

// Listen binds the UDP socket and starts the demux read loop.
func Listen(a addr.Addr) (*Acceptor, error) {
	if a.Kind() == addr.Domain {
		return nil, fmt.Errorf("udpstream: cannot listen on a domain address %q", a.String())
	}
	pConn, err := net.ListenPacket("udp", a.String())
	if err != nil {
		return nil, fmt.Errorf("udpstream: bind udp %s: %w", a.String(), err)
	}
	if uc, ok := pConn.(*net.UDPConn); ok {
		_ = uc.SetReadBuffer(socketBufSize)
		_ = uc.SetWriteBuffer(socketBufSize)
	}

	flog.Debugf("udpstream: listening on %s", pConn.LocalAddr())
	return &Acceptor{pConn: pConn, demux: NewDemux(pConn)}, nil
}

// AcceptBase waits for the next peer's first datagram and yields a
// pseudo-stream Stream for it. Per spec §4.3, a datagram from an existing
// peer is routed into that peer's channel without producing a new Stream;
// this loop only returns when a genuinely new peer appears.
func (a *Acceptor) AcceptBase() (stream.Stream, net.Addr, error) {
	pc, err := a.demux.Accept()
	if err != nil {
		return nil, nil, fmt.Errorf("udpstream: accept: %w", err)
	}

	reader := newPeerReader(pc, a.pConn)
	return &Stream{baseConn: reader}, pc.addr, nil
}

func (a *Acceptor) Addr() net.Addr { return a.pConn.LocalAddr() }

func (a *Acceptor) Close() error {
	_ = a.demux.Close()
	return nil
}

// PeerCount exposes the live-peer invariant for tests (spec §8 property 4).
func (a *Acceptor) PeerCount() int { return a.demux.PeerCount() }

// AsListener adapts the acceptor into a full stream.Listener whose Accept
// is the identity: UDP with a non-QUIC transport only gets the plain
// stream pump (spec §3), so there is no further handshake here.
func (a *Acceptor) AsListener() stream.Listener {
	return stream.WithIdentityAccept(baseAdapter{a})
}

type baseAdapter struct{ a *Acceptor }

func (b baseAdapter) AcceptBase() (stream.Stream, net.Addr, error) { return b.a.AcceptBase() }
func (b baseAdapter) Addr() net.Addr                               { return b.a.Addr() }
func (b baseAdapter) Close() error                                 { return b.a.Close() }
