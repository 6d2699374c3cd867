// Package h2layer carries one logical Stream per HTTP/2 request/response
// pair over a shared HTTP/2 connection (spec §4.6), following the
// shared-handle / in-flight-counter / max_concurrent reuse protocol of
// spec §3: multiple logical streams share one underlying TCP (+TLS)
// connection until max_concurrent is reached, at which point a fresh
// connection is dialed. The shared-handle lifecycle is grounded on
// paqet's timedConn (internal/client/timed_conn.go): create, track,
// invalidate-and-recreate-on-failure is the same shape, generalized from
// "one tunnel connection" to "one pooled mux handle with a capacity".
package h2layer

import (
	"io"
	"net"
	"sync"

	"midori/internal/stream"
)

// Stream is a single HTTP/2 request/response pair used as a duplex byte
// pipe: the request body is the write side, the response body is the
// read side.
type Stream struct {
	reqBody  *io.PipeWriter
	respBody io.ReadCloser
	local    net.Addr
	remote   net.Addr

	closeOnce sync.Once
}

func (s *Stream) Read(p []byte) (int, error)  { return s.respBody.Read(p) }
func (s *Stream) Write(p []byte) (int, error) { return s.reqBody.Write(p) }

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.reqBody.Close()
		err = s.respBody.Close()
	})
	return err
}

// CloseWrite ends the request body, signalling the server side to stop
// expecting further request data; the response body remains readable.
func (s *Stream) CloseWrite() error {
	return s.reqBody.Close()
}

func (s *Stream) LocalAddr() net.Addr  { return s.local }
func (s *Stream) RemoteAddr() net.Addr { return s.remote }

var _ stream.Stream = (*Stream)(nil)

// serverStream is the listen-side counterpart: request body is the read
// side, the ResponseWriter (flushed after every write) is the write
// side. It has no real half-close: ending the write side here would end
// the whole HTTP response, and with it the read side, so CloseWrite is a
// no-op approximation, matching stream.Stream's documented allowance for
// muxed streams that cannot truly half-close.
type serverStream struct {
	body    io.ReadCloser
	w       interface {
		io.Writer
		flush()
	}
	local  net.Addr
	remote net.Addr
	done   chan struct{}

	closeOnce sync.Once
}

func (s *serverStream) Read(p []byte) (int, error) { return s.body.Read(p) }

func (s *serverStream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err == nil {
		s.w.flush()
	}
	return n, err
}

func (s *serverStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *serverStream) CloseWrite() error { return nil }

func (s *serverStream) LocalAddr() net.Addr  { return s.local }
func (s *serverStream) RemoteAddr() net.Addr { return s.remote }

var _ stream.Stream = (*serverStream)(nil)
