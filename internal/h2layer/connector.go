package h2layer

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"

	"midori/internal/addr"
	"midori/internal/conf"
	"midori/internal/stream"
)

const (
	defaultMaxConcurrent = 1000
	openStreamTimeout    = 10 * time.Second
)

// Connector opens logical streams as HTTP/2 request/response pairs
// against one target, reusing a single underlying connection (the
// "handle") for up to maxConcurrent concurrent logical streams and
// dialing a fresh one once that capacity is exhausted or the handle has
// failed.
type Connector struct {
	inner         stream.Connector
	target        addr.Addr
	path          string
	scheme        string
	maxConcurrent int32

	mu     sync.Mutex
	handle *handle
}

type handle struct {
	cc       *http2.ClientConn
	base     stream.Stream
	inFlight atomic.Int32
}

// NewConnector builds an H2 connector. inner dials the underlying
// (possibly TLS-wrapped) transport; t.Mux sets max_concurrent, defaulting
// to 1000 per spec §3's HalfConfig defaults. tls is whether that inner
// layer is TLS, which decides the :scheme used on every logical request
// (spec §4.6), the same tls bool wslayer.NewConnector already takes.
func NewConnector(inner stream.Connector, target addr.Addr, t conf.Trans, tls bool) *Connector {
	max := int32(t.Mux)
	if max <= 0 {
		max = defaultMaxConcurrent
	}
	scheme := "http"
	if tls {
		scheme = "https"
	}
	return &Connector{inner: inner, target: target, path: t.Path, scheme: scheme, maxConcurrent: max}
}

func (c *Connector) Connect() (stream.Stream, error) {
	h, err := c.acquireHandle()
	if err != nil {
		return nil, err
	}

	s, err := c.openStream(h)
	if err != nil {
		h.inFlight.Add(-1)
		c.clearReuse(h)
		return nil, err
	}
	return s, nil
}

func (c *Connector) acquireHandle() (*handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil && c.handle.inFlight.Load() < c.maxConcurrent && c.handle.cc.CanTakeNewRequest() {
		c.handle.inFlight.Add(1)
		return c.handle, nil
	}

	h, err := c.dial()
	if err != nil {
		return nil, err
	}
	h.inFlight.Add(1)
	c.handle = h
	return h, nil
}

func (c *Connector) dial() (*handle, error) {
	base, err := c.inner.Connect()
	if err != nil {
		return nil, fmt.Errorf("h2layer: dial: %w", err)
	}
	t2 := &http2.Transport{}
	cc, err := t2.NewClientConn(streamConn{base})
	if err != nil {
		base.Close()
		return nil, fmt.Errorf("h2layer: new client conn: %w", err)
	}
	return &handle{cc: cc, base: base}, nil
}

// clearReuse drops a failed handle so the next Connect dials fresh,
// matching the spec §3 mux "clear_reuse on failure" rule.
func (c *Connector) clearReuse(h *handle) {
	c.mu.Lock()
	if c.handle == h {
		c.handle = nil
	}
	c.mu.Unlock()
	h.base.Close()
}

func (c *Connector) openStream(h *handle) (stream.Stream, error) {
	pr, pw := io.Pipe()
	req, err := http.NewRequest(http.MethodGet, c.scheme+"://"+c.target.String()+c.path, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	type result struct {
		resp *http.Response
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := h.cc.RoundTrip(req)
		resCh <- result{resp, err}
	}()

	select {
	case r := <-resCh:
		if r.err != nil {
			return nil, fmt.Errorf("h2layer: round trip: %w", r.err)
		}
		if r.resp.StatusCode != http.StatusOK {
			r.resp.Body.Close()
			return nil, fmt.Errorf("h2layer: remote returned status %d", r.resp.StatusCode)
		}
		return &Stream{
			reqBody:  pw,
			respBody: r.resp.Body,
			local:    h.base.LocalAddr(),
			remote:   h.base.RemoteAddr(),
		}, nil
	case <-time.After(openStreamTimeout):
		return nil, fmt.Errorf("h2layer: timed out opening logical stream")
	}
}
