package wslayer

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"midori/internal/stream"
)

func newBufioReader(s stream.Stream) *bufio.Reader {
	return bufio.NewReader(streamNetConn{s})
}

// oneShotResponder is the minimal http.ResponseWriter + http.Hijacker
// gorilla/websocket's Upgrader needs to take over a raw base Stream that
// already has the Upgrade request's bytes partially buffered in bufr.
type oneShotResponder struct {
	conn   stream.Stream
	bufr   *bufio.Reader
	header http.Header
}

func (o *oneShotResponder) Header() http.Header {
	if o.header == nil {
		o.header = http.Header{}
	}
	return o.header
}

func (o *oneShotResponder) Write([]byte) (int, error) {
	return 0, errors.New("wslayer: direct Write unsupported, call Hijack")
}

func (o *oneShotResponder) WriteHeader(int) {}

func (o *oneShotResponder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	nc := streamNetConn{o.conn}
	rw := bufio.NewReadWriter(o.bufr, bufio.NewWriter(nc))
	return nc, rw, nil
}

var _ http.Hijacker = (*oneShotResponder)(nil)

// streamNetConn adapts a stream.Stream into a net.Conn for libraries
// (gorilla/websocket, net/http's Hijack path) that require the full
// net.Conn interface including deadlines.
type streamNetConn struct {
	stream.Stream
}

func (c streamNetConn) SetDeadline(t time.Time) error      { return nil }
func (c streamNetConn) SetReadDeadline(t time.Time) error  { return nil }
func (c streamNetConn) SetWriteDeadline(t time.Time) error { return nil }

var _ net.Conn = streamNetConn{}
