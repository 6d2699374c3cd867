package udpstream

import (
	"context"
	"fmt"
	"net"
	"time"

	"midori/internal/addr"
	"midori/internal/resolver"
	"midori/internal/stream"
)

// Connector binds a wildcard UDP socket and dials a remote peer (spec
// §4.3). Each Connect call hands back a bare Stream over that socket:
// the remote peer is an arbitrary external UDP client/server, so no
// session or framing protocol is opened on top, reusing only the
// teacher's ConnAdapter-over-PacketConn pattern from
// internal/tnet/udp/dial.go.
type Connector struct {
	addr addr.Addr
}

// NewConnector builds a UDP connector for the given remote address.
func NewConnector(a addr.Addr) *Connector {
	return &Connector{addr: a}
}

// Connect resolves (if needed), binds a wildcard socket, and returns a
// bare Stream writing to the remote peer.
func (c *Connector) Connect() (stream.Stream, error) {
	target, err := c.resolveTarget()
	if err != nil {
		return nil, err
	}

	network := "udp"
	if target.IP.To4() == nil {
		network = "udp6"
	}
	pConn, err := net.ListenPacket(network, wildcardFor(network))
	if err != nil {
		return nil, fmt.Errorf("udpstream: bind local socket: %w", err)
	}

	adapter := &connAdapter{pConn: pConn, remote: target}
	return &Stream{baseConn: adapter}, nil
}

func wildcardFor(network string) string {
	if network == "udp6" {
		return "[::]:0"
	}
	return "0.0.0.0:0"
}

func (c *Connector) resolveTarget() (*net.UDPAddr, error) {
	if c.addr.Kind() != addr.Domain {
		return net.ResolveUDPAddr("udp", c.addr.String())
	}
	ip, err := resolver.Get().Resolve(context.Background(), c.addr.Host())
	if err != nil {
		return nil, fmt.Errorf("udpstream: resolve %s: %w", c.addr.Host(), err)
	}
	return &net.UDPAddr{IP: ip, Port: c.addr.Port()}, nil
}

// connAdapter wraps a PacketConn + fixed remote address into a net.Conn
// shape, mirroring the teacher's ConnAdapter in
// internal/tnet/udp/adapter.go (minus the optional cipher, which Midori's
// spec has no equivalent of, and minus the mux session the teacher layers
// on top since this end of the pipe is an arbitrary external UDP peer).
type connAdapter struct {
	pConn  net.PacketConn
	remote *net.UDPAddr
}

func (a *connAdapter) Read(b []byte) (int, error) {
	n, _, err := a.pConn.ReadFrom(b)
	return n, err
}

func (a *connAdapter) Write(b []byte) (int, error) {
	return a.pConn.WriteTo(b, a.remote)
}

func (a *connAdapter) Close() error                      { return a.pConn.Close() }
func (a *connAdapter) LocalAddr() net.Addr               { return a.pConn.LocalAddr() }
func (a *connAdapter) RemoteAddr() net.Addr              { return a.remote }
func (a *connAdapter) SetDeadline(t time.Time) error     { return a.pConn.SetDeadline(t) }
func (a *connAdapter) SetReadDeadline(t time.Time) error { return a.pConn.SetReadDeadline(t) }
func (a *connAdapter) SetWriteDeadline(t time.Time) error {
	return a.pConn.SetWriteDeadline(t)
}
