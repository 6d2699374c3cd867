package quiclayer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/quic-go/quic-go"

	"midori/internal/addr"
	"midori/internal/flog"
	"midori/internal/stream"
)

// Listener accepts QUIC connections (via 0-RTT when the client presents a
// valid session ticket, falling back to a full handshake otherwise) and
// fans each connection's AcceptStream calls out into a shared queue of
// logical streams, mirroring internal/h2layer's listen-side fan-out and
// grounded on the same accept-loop-per-connection shape as
// AdguardTeam-AdGuardDNS's serveQUIC.
type Listener struct {
	ln *quic.EarlyListener

	incoming chan acceptResult
	closed   chan struct{}
	once     sync.Once
}

type acceptResult struct {
	s    stream.Stream
	peer net.Addr
	err  error
}

// Listen binds a QUIC listener. a must be a literal address; tlsConfig
// must carry the relay's ALPN list and a server certificate.
func Listen(a addr.Addr, tlsConfig *tls.Config) (*Listener, error) {
	if a.Kind() == addr.Domain {
		return nil, fmt.Errorf("quiclayer: cannot listen on a domain address %q", a.String())
	}
	ln, err := quic.ListenAddrEarly(a.String(), tlsConfig, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("quiclayer: listen %s: %w", a.String(), err)
	}

	l := &Listener{ln: ln, incoming: make(chan acceptResult, 64), closed: make(chan struct{})}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept(context.Background())
		if err != nil {
			select {
			case l.incoming <- acceptResult{err: fmt.Errorf("quiclayer: accept: %w", err)}:
			case <-l.closed:
			}
			return
		}
		flog.Debugf("quiclayer: accepted connection from %s (0-rtt=%v)",
			conn.RemoteAddr(), conn.ConnectionState().Used0RTT)
		go l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn quic.EarlyConnection) {
	for {
		strm, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}
		s := &Stream{Stream: strm, local: conn.LocalAddr(), remote: conn.RemoteAddr()}
		select {
		case l.incoming <- acceptResult{s: s, peer: conn.RemoteAddr()}:
		case <-l.closed:
			return
		}
	}
}

// AcceptBase returns the next logical stream produced by any live QUIC
// connection.
func (l *Listener) AcceptBase() (stream.Stream, net.Addr, error) {
	select {
	case r := <-l.incoming:
		if r.err != nil {
			select {
			case <-l.closed:
				return nil, nil, fmt.Errorf("quiclayer: listener closed: %w", net.ErrClosed)
			default:
			}
		}
		return r.s, r.peer, r.err
	case <-l.closed:
		return nil, nil, fmt.Errorf("quiclayer: listener closed: %w", net.ErrClosed)
	}
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return l.ln.Close()
}

// Accept is the identity: the QUIC handshake already completed before a
// logical stream reached AcceptBase.
func (l *Listener) Accept(base stream.Stream) (stream.Stream, error) {
	return base, nil
}

var _ stream.Listener = (*Listener)(nil)
