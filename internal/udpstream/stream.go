package udpstream

import (
	"io"
	"net"

	"midori/internal/stream"
)

// baseConn is the minimal shape both the server-side peerReader and the
// client-side connAdapter satisfy.
type baseConn interface {
	io.Reader
	io.Writer
	io.Closer
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Stream is a bare per-peer UDP byte pipe (spec §4.3, §9): an arbitrary
// external UDP client or server, not another Midori instance, sits on the
// other end, so no multiplexing or framing protocol is layered on top —
// just the demux's per-peer channel on read and send_to on write, exactly
// the original implementation's UdpStream.
type Stream struct {
	baseConn
}

// CloseWrite is a no-op: UDP has no half-close primitive, matching the
// original implementation's poll_shutdown, which always returns Ok(())
// without touching the socket.
func (s *Stream) CloseWrite() error { return nil }

var _ stream.Stream = (*Stream)(nil)
