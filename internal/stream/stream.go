// Package stream defines the type-erased capability contract every
// network/transport/security layer implements: something that accepts or
// dials a bidirectional byte Stream. Every layer in internal/plain,
// internal/udpstream, internal/tlslayer, internal/wslayer, internal/h2layer
// and internal/quiclayer satisfies Connector and, where applicable,
// Listener, so the pumps in internal/pump are written exactly once against
// these two interfaces regardless of which concrete stack produced the
// Stream.
//
// Dispatch is erased only at these acceptor/connector boundaries, never
// inside the per-byte copy loop, so the hot path pays no virtual-call
// overhead beyond the single Read/Write call per buffer already required.
package stream

import (
	"io"
	"net"
)

// Stream is an abstract bidirectional byte pipe with no message framing
// visible to callers. It is produced by a Connector's Connect or a
// Listener's Accept, and is destroyed when both pump directions observe
// close/error and the owning task exits.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer

	// CloseWrite shuts down the write half only, signalling EOF to the
	// peer while the read half remains usable until the peer does the
	// same. Implementations that cannot half-close either approximate it
	// by sending an end-of-stream marker (the WebSocket close frame) or
	// make it a no-op (the HTTP/2 server side, UDP pseudo-streams).
	CloseWrite() error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Connector produces outbound Streams. Implementations may internally
// reuse a shared multiplexed connection (HTTP/2, QUIC): see
// internal/h2layer and internal/quiclayer for the shared-handle protocol.
type Connector interface {
	Connect() (Stream, error)
}

// BaseListener is the bottom of a listener stack: it accepts a raw,
// un-handshaked Stream plus the peer's network address. Splitting accept
// this way lets the protocol handshake (TLS/WS/H2/QUIC) run on the worker
// task rather than blocking the shared accept loop.
type BaseListener interface {
	AcceptBase() (base Stream, peer net.Addr, err error)
	Addr() net.Addr
	Close() error
}

// Listener wraps a BaseListener and performs the protocol handshake on an
// already-accepted base stream.
type Listener interface {
	BaseListener

	// Accept runs the protocol handshake (TLS/WS/H2/QUIC) on base and
	// returns the resulting application Stream. Returning an error here
	// is a Handshake-kind failure: the caller logs it and drops this
	// flow without tearing down the accept loop.
	Accept(base Stream) (Stream, error)
}

// identityListener lets simple layers (where Accept is the identity, e.g.
// plain TCP/UDS) implement Listener with minimal boilerplate.
type identityListener struct {
	BaseListener
}

func (l identityListener) Accept(base Stream) (Stream, error) { return base, nil }

// WithIdentityAccept adapts a BaseListener whose Accept is a no-op (plain
// TCP/UDS) into a full Listener.
func WithIdentityAccept(b BaseListener) Listener { return identityListener{b} }
