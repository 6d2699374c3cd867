package quiclayer

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"midori/internal/addr"
	"midori/internal/conf"
	"midori/internal/resolver"
	"midori/internal/stream"
)

// maxIdleTimeout mirrors AdguardTeam-AdGuardDNS's serverquic.go choice of
// a higher-than-default QUIC idle timeout; relayed connections are
// typically longer-lived than one-shot DNS-over-QUIC queries.
const maxIdleTimeout = 5 * time.Minute

func quicConfig() *quic.Config {
	return &quic.Config{MaxIdleTimeout: maxIdleTimeout}
}

// Connector reuses one quic.Connection handle (opened with 0-RTT where
// the server supports it) for up to max_concurrent logical streams,
// dialing fresh once exhausted or failed (spec §3, §4.7).
type Connector struct {
	target        addr.Addr
	tlsConfig     *tls.Config
	maxConcurrent int32

	mu     sync.Mutex
	handle *handle
}

type handle struct {
	conn     quic.EarlyConnection
	inFlight atomic.Int32
}

// NewConnector builds a QUIC connector. tlsConfig must already carry the
// relay's negotiated ALPN list; HalfConfig.setDefaults clamps t.Mux to
// [1,100] for QUIC halves.
func NewConnector(target addr.Addr, tlsConfig *tls.Config, t conf.Trans) *Connector {
	max := int32(t.Mux)
	if max <= 0 {
		max = 100
	}
	return &Connector{target: target, tlsConfig: tlsConfig, maxConcurrent: max}
}

func (c *Connector) Connect() (stream.Stream, error) {
	h, err := c.acquireHandle()
	if err != nil {
		return nil, err
	}

	strm, err := h.conn.OpenStreamSync(context.Background())
	if err != nil {
		h.inFlight.Add(-1)
		c.clearReuse(h)
		return nil, fmt.Errorf("quiclayer: open stream: %w", err)
	}
	return &Stream{Stream: strm, local: h.conn.LocalAddr(), remote: h.conn.RemoteAddr()}, nil
}

func (c *Connector) acquireHandle() (*handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil && c.handle.inFlight.Load() < c.maxConcurrent {
		select {
		case <-c.handle.conn.Context().Done():
			// Previous handle's connection died; fall through to redial.
		default:
			c.handle.inFlight.Add(1)
			return c.handle, nil
		}
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
	target, err := c.resolveTarget()
	if err != nil {
		return nil, err
	}
	conn, err := quic.DialAddrEarly(context.Background(), target, c.tlsConfig, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("quiclayer: dial %s: %w", target, err)
	}
	return &handle{conn: conn}, nil
}

// clearReuse drops a failed handle so the next Connect dials fresh.
func (c *Connector) clearReuse(h *handle) {
	c.mu.Lock()
	if c.handle == h {
		c.handle = nil
	}
	c.mu.Unlock()
	_ = h.conn.CloseWithError(0, "")
}

func (c *Connector) resolveTarget() (string, error) {
	if c.target.Kind() != addr.Domain {
		return c.target.String(), nil
	}
	ip, err := resolver.Get().Resolve(context.Background(), c.target.Host())
	if err != nil {
		return "", fmt.Errorf("quiclayer: resolve %s: %w", c.target.Host(), err)
	}
	return addr.NewSocket(ip, c.target.Port()).String(), nil
}
