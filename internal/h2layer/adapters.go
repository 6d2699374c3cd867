package h2layer

import (
	"net"
	"time"

	"midori/internal/stream"
)

// streamConn adapts a stream.Stream into the full net.Conn shape that
// golang.org/x/net/http2 requires to drive a connection directly (rather
// than through net/http's server loop). Deadlines are forwarded when the
// underlying stream exposes them and are a no-op otherwise.
type streamConn struct {
	stream.Stream
}

type deadliner interface {
	SetDeadline(time.Time) error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

func (c streamConn) SetDeadline(t time.Time) error {
	if d, ok := c.Stream.(deadliner); ok {
		return d.SetDeadline(t)
	}
	return nil
}

func (c streamConn) SetReadDeadline(t time.Time) error {
	if d, ok := c.Stream.(deadliner); ok {
		return d.SetReadDeadline(t)
	}
	return nil
}

func (c streamConn) SetWriteDeadline(t time.Time) error {
	if d, ok := c.Stream.(deadliner); ok {
		return d.SetWriteDeadline(t)
	}
	return nil
}

var _ net.Conn = streamConn{}
