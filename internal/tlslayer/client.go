// Package tlslayer wraps any underlying stream-producing connector or
// acceptor with a TLS client or server session (spec §4.4). Root-store and
// certificate handling is grounded on nabbar-golib/certificates' load-vs-
// generate, PEM-cleaning idiom; version/ALPN parsing follows that
// package's certificate/version model.
package tlslayer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/x509roots/fallback"

	"midori/internal/addr"
	"midori/internal/conf"
	"midori/internal/stream"
)

const handshakeTimeout = 10 * time.Second

// Stream wraps a *tls.Conn so it satisfies stream.Stream's CloseWrite.
type Stream struct {
	*tls.Conn
}

func (s *Stream) CloseWrite() error {
	return s.Conn.CloseWrite()
}

var _ stream.Stream = (*Stream)(nil)

// ClientConfig is the compiled client-side TLS configuration (spec §4.4).
type ClientConfig struct {
	SkipVerify      bool
	EnableSNI       bool
	EnableEarlyData bool
	SNI             string
	Roots           string // "", "native", "mozilla", or a pem file path
	tlsConfig       *tls.Config
}

// BuildClientConfig validates and compiles a conf.TLS client entry against
// the connector's own address. The ServerName is the explicit sni if set;
// otherwise, with SNI enabled, the address's domain name, or for a literal
// IP or unix path the placeholder "localhost" (EnableSNI is then recorded
// as false). crypto/tls sends a non-IP ServerName in the client hello and
// verifies the certificate against it, so the placeholder is sent as SNI
// too; the handshake does not consult EnableSNI.
func BuildClientConfig(t conf.TLS, connectAddr addr.Addr) (*ClientConfig, error) {
	cc := &ClientConfig{
		SkipVerify:      t.SkipVerify,
		EnableEarlyData: t.EnableEarlyData,
		Roots:           t.Roots,
	}
	if t.EnableSNI != nil {
		cc.EnableSNI = *t.EnableSNI
	} else {
		cc.EnableSNI = true
	}

	sni := t.SNI
	if sni == "" && cc.EnableSNI {
		if name, ok := connectAddr.SNI(); ok {
			sni = name
		} else {
			// Literal IP or unix path: no name to authenticate against.
			cc.EnableSNI = false
			sni = "localhost"
		}
	}
	cc.SNI = sni

	versions, err := parseVersions(t.Versions)
	if err != nil {
		return nil, err
	}

	roots, err := buildRootPool(t.Roots)
	if err != nil {
		return nil, err
	}

	minV, maxV := versionBounds(versions)
	cc.tlsConfig = &tls.Config{
		ServerName:         sni,
		InsecureSkipVerify: t.SkipVerify,
		NextProtos:         t.ALPNs,
		RootCAs:            roots,
		MinVersion:         minV,
		MaxVersion:         maxV,
	}
	return cc, nil
}

// TLSConfig exposes the compiled *tls.Config directly, for layers like
// quiclayer whose transport performs its own TLS handshake internally
// rather than running over a plain stream.Connector.
func (cc *ClientConfig) TLSConfig() *tls.Config { return cc.tlsConfig }

// WrapConnector wraps inner so that Connect() performs the TLS client
// handshake on top of it.
func WrapConnector(inner stream.Connector, cc *ClientConfig) stream.Connector {
	return &clientConnector{inner: inner, cfg: cc}
}

type clientConnector struct {
	inner stream.Connector
	cfg   *ClientConfig
}

func (c *clientConnector) Connect() (stream.Stream, error) {
	base, err := c.inner.Connect()
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Client(streamConn{base}, c.cfg.tlsConfig)

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		base.Close()
		return nil, fmt.Errorf("tlslayer: handshake: %w", err)
	}
	return &Stream{Conn: tlsConn}, nil
}

func parseVersions(versions []string) ([]uint16, error) {
	if len(versions) == 0 {
		return []uint16{tls.VersionTLS12, tls.VersionTLS13}, nil
	}
	var out []uint16
	for _, v := range versions {
		switch v {
		case "1.2":
			out = append(out, tls.VersionTLS12)
		case "1.3":
			out = append(out, tls.VersionTLS13)
		default:
			return nil, fmt.Errorf("tlslayer: unsupported tls version %q", v)
		}
	}
	return out, nil
}

func versionBounds(versions []uint16) (min, max uint16) {
	min, max = tls.VersionTLS13, tls.VersionTLS12
	for _, v := range versions {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min > max {
		min, max = max, min
	}
	return min, max
}

// buildRootPool resolves the "roots" option: "" or "native" uses the OS
// trust store, "mozilla" uses the bundled Mozilla CA set (golang.org/x/
// crypto/x509roots/fallback), anything else is treated as a PEM file path.
func buildRootPool(roots string) (*x509.CertPool, error) {
	switch roots {
	case "", "native":
		return nil, nil // nil means crypto/tls falls back to the system pool
	case "mozilla":
		return fallback.Roots, nil
	default:
		data, err := os.ReadFile(roots)
		if err != nil {
			return nil, fmt.Errorf("tlslayer: reading root bundle %s: %w", roots, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("tlslayer: no certificates found in %s", roots)
		}
		return pool, nil
	}
}

// streamConn adapts a stream.Stream (which already carries LocalAddr and
// RemoteAddr, and real deadlines when the plain layer is beneath it) into
// a net.Conn for crypto/tls. Deadline calls are forwarded when the
// underlying stream supports them and are a no-op otherwise, since the
// handshake itself is already bounded by HandshakeContext.
type streamConn struct {
	stream.Stream
}

type deadliner interface {
	SetDeadline(time.Time) error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

func (s streamConn) SetDeadline(t time.Time) error {
	if d, ok := s.Stream.(deadliner); ok {
		return d.SetDeadline(t)
	}
	return nil
}

func (s streamConn) SetReadDeadline(t time.Time) error {
	if d, ok := s.Stream.(deadliner); ok {
		return d.SetReadDeadline(t)
	}
	return nil
}

func (s streamConn) SetWriteDeadline(t time.Time) error {
	if d, ok := s.Stream.(deadliner); ok {
		return d.SetWriteDeadline(t)
	}
	return nil
}

var _ net.Conn = streamConn{}
