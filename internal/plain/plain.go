// Package plain implements the bottom-of-stack TCP and Unix domain socket
// listener/connector pair (spec §4.2). accept(base) is the identity for
// plain streams; the concrete *net.TCPConn/*net.UnixConn is reachable via
// Stream.Raw() so the Linux zero-copy pump (internal/pump) can splice
// straight off the socket file descriptor.
package plain

import (
	"context"
	"fmt"
	"net"
	"time"

	"midori/internal/addr"
	"midori/internal/flog"
	"midori/internal/resolver"
	"midori/internal/stream"
)

// socketBufSize tunes read/write socket buffers for high-throughput
// relaying, matching the teacher's UDP socket tuning in
// internal/forward/udp.go and internal/server/udp.go.
const socketBufSize = 8 * 1024 * 1024

// Stream wraps a net.Conn (TCPConn or UnixConn) as a stream.Stream and
// exposes the raw net.Conn for the zero-copy pump.
type Stream struct {
	net.Conn
}

// Raw returns the underlying net.Conn so the splice-based pump can reach
// its file descriptor via SyscallConn.
func (s *Stream) Raw() net.Conn { return s.Conn }

// CloseWrite shuts down the write half; TCP and Unix stream conns both
// support half-close.
func (s *Stream) CloseWrite() error {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := s.Conn.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return s.Conn.Close()
}

var _ stream.Stream = (*Stream)(nil)

// Listener is the plain TCP/UDS base listener.
type Listener struct {
	ln  net.Listener
	net string
}

// Listen binds a TCP or Unix listener. A Domain address is never
// resolved for listening (spec §4.1 invariant): bind requires a literal
// socket address.
func Listen(netKind string, a addr.Addr) (*Listener, error) {
	if a.Kind() == addr.Domain {
		return nil, fmt.Errorf("plain: cannot listen on a domain address %q, a literal address is required", a.String())
	}

	network := addr.Network(netKind)
	ln, err := net.Listen(network, a.String())
	if err != nil {
		return nil, fmt.Errorf("plain: bind %s %s: %w", network, a.String(), err)
	}
	return &Listener{ln: ln, net: netKind}, nil
}

// AcceptBase accepts one connection and, for TCP, sets TCP_NODELAY.
func (l *Listener) AcceptBase() (stream.Stream, net.Addr, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, nil, fmt.Errorf("plain: accept: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetReadBuffer(socketBufSize)
		_ = tc.SetWriteBuffer(socketBufSize)
	}
	return &Stream{Conn: conn}, conn.RemoteAddr(), nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error { return l.ln.Close() }

// AsListener adapts this BaseListener into a full stream.Listener whose
// Accept is the identity, per spec §4.2.
func (l *Listener) AsListener() stream.Listener {
	return stream.WithIdentityAccept(baseAdapter{l})
}

type baseAdapter struct{ l *Listener }

func (b baseAdapter) AcceptBase() (stream.Stream, net.Addr, error) { return b.l.AcceptBase() }
func (b baseAdapter) Addr() net.Addr                               { return b.l.Addr() }
func (b baseAdapter) Close() error                                 { return b.l.Close() }

// Connector dials TCP or Unix; a Domain address is resolved on every
// Connect call via the process-wide resolver singleton (spec §4.1).
type Connector struct {
	netKind string
	addr    addr.Addr
	dialer  net.Dialer
}

// NewConnector builds a plain connector for the given net kind and
// address.
func NewConnector(netKind string, a addr.Addr) *Connector {
	return &Connector{netKind: netKind, addr: a, dialer: net.Dialer{Timeout: 10 * time.Second}}
}

// Connect resolves (if needed) and dials.
func (c *Connector) Connect() (stream.Stream, error) {
	target, err := c.resolveTarget()
	if err != nil {
		return nil, err
	}

	network := addr.Network(c.netKind)
	conn, err := c.dialer.DialContext(context.Background(), network, target)
	if err != nil {
		return nil, fmt.Errorf("plain: dial %s %s: %w", network, target, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Stream{Conn: conn}, nil
}

func (c *Connector) resolveTarget() (string, error) {
	if c.addr.Kind() != addr.Domain {
		return c.addr.String(), nil
	}
	ip, err := resolver.Get().Resolve(context.Background(), c.addr.Host())
	if err != nil {
		flog.Debugf("plain: dns resolution failed for %s: %v", c.addr.Host(), err)
		return "", fmt.Errorf("plain: resolve %s: %w", c.addr.Host(), err)
	}
	return net.JoinHostPort(ip.String(), itoa(c.addr.Port())), nil
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
