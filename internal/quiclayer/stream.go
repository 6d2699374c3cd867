// Package quiclayer carries logical streams over QUIC bidirectional
// streams (spec §4.7): a client reuses one quic.Connection handle for up
// to max_concurrent logical streams (the same shared-handle protocol as
// internal/h2layer, since spec §3 specifies it once for both muxed
// transports), and a listener accepts incoming QUIC connections and fans
// each one out into its AcceptStream calls. Accept-loop-per-connection
// and per-connection fan-out are grounded on AdguardTeam-AdGuardDNS's
// serverquic.go; quic-go is paqet's own dependency (internal/tnet/quic).
package quiclayer

import (
	"net"

	"github.com/quic-go/quic-go"

	"midori/internal/stream"
)

// Stream wraps one quic.Stream.
type Stream struct {
	quic.Stream
	local  net.Addr
	remote net.Addr
}

func (s *Stream) LocalAddr() net.Addr  { return s.local }
func (s *Stream) RemoteAddr() net.Addr { return s.remote }

// CloseWrite closes the send side only; quic.Stream.Close() already means
// "no more writes" while Read remains usable, matching the interface
// directly.
func (s *Stream) CloseWrite() error {
	return s.Stream.Close()
}

// Close tears down both directions by canceling the read side in
// addition to closing the write side, since quic.Stream.Close() alone
// only half-closes.
func (s *Stream) Close() error {
	s.Stream.CancelRead(0)
	return s.Stream.Close()
}

var _ stream.Stream = (*Stream)(nil)
