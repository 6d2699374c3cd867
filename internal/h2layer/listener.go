package h2layer

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/http2"

	"midori/internal/conf"
	"midori/internal/stream"
)

// Listener accepts HTTP/2 connections on the inner BaseListener and fans
// each one out into many logical streams, one per request matching the
// configured path (spec §4.6, §4.8's listen-side fan-out). AcceptBase
// pulls from a shared queue fed by every live HTTP/2 connection rather
// than one connection at a time, since a single TCP accept here can
// yield any number of logical streams over its lifetime.
type Listener struct {
	inner stream.BaseListener
	path  string

	incoming chan acceptResult
	closed   chan struct{}
	once     sync.Once
}

type acceptResult struct {
	s    stream.Stream
	peer net.Addr
	err  error
}

// WrapListener wraps inner with the HTTP/2 fan-out acceptor.
func WrapListener(inner stream.BaseListener, t conf.Trans) *Listener {
	l := &Listener{
		inner:    inner,
		path:     t.Path,
		incoming: make(chan acceptResult, 64),
		closed:   make(chan struct{}),
	}
	go l.acceptLoop()
	return l
}

func (l *Listener) acceptLoop() {
	for {
		base, peer, err := l.inner.AcceptBase()
		if err != nil {
			select {
			case l.incoming <- acceptResult{err: fmt.Errorf("h2layer: accept: %w", err)}:
			case <-l.closed:
			}
			return
		}
		go l.serveConn(base, peer)
	}
}

func (l *Listener) serveConn(base stream.Stream, peer net.Addr) {
	srv := &http2.Server{}
	srv.ServeConn(streamConn{base}, &http2.ServeConnOpts{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != l.path {
				http.NotFound(w, r)
				return
			}
			flusher, ok := w.(http.Flusher)
			if !ok {
				http.Error(w, "streaming unsupported", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			flusher.Flush()

			s := &serverStream{
				body:   r.Body,
				w:      flushWriter{w, flusher},
				local:  base.LocalAddr(),
				remote: peer,
				done:   make(chan struct{}),
			}
			select {
			case l.incoming <- acceptResult{s: s, peer: peer}:
			case <-l.closed:
				return
			}
			<-s.done
		}),
	})
}

type flushWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (f flushWriter) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f flushWriter) flush()                      { f.flusher.Flush() }

// AcceptBase returns the next logical stream produced by any live HTTP/2
// connection; the handshake (request routing, 200 response) already ran
// in serveConn, so this plus the identity Accept below is the full
// Listener.
func (l *Listener) AcceptBase() (stream.Stream, net.Addr, error) {
	select {
	case r := <-l.incoming:
		return r.s, r.peer, r.err
	case <-l.closed:
		return nil, nil, fmt.Errorf("h2layer: listener closed: %w", net.ErrClosed)
	}
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return l.inner.Close()
}

// Accept is the identity: the HTTP/2 handshake and routing already
// completed before a logical stream reached AcceptBase.
func (l *Listener) Accept(base stream.Stream) (stream.Stream, error) {
	return base, nil
}

var _ stream.Listener = (*Listener)(nil)
