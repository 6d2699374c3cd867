package tlslayer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ocsp"

	"midori/internal/conf"
	"midori/internal/flog"
	"midori/internal/stream"
)

// ServerConfig is the compiled server-side TLS configuration (spec §4.4).
type ServerConfig struct {
	tlsConfig *tls.Config
}

// BuildServerConfig loads (or, when cert and key name the same path,
// generates) the listening certificate, attaches any configured OCSP
// staple, and compiles ALPN/version settings. Cert loading mirrors
// nabbar-golib/certificates' ConfigPair.Cert: PEM read from a file path,
// then handed to tls.X509KeyPair.
func BuildServerConfig(t conf.TLS) (*ServerConfig, error) {
	var cert tls.Certificate
	var err error

	if t.Cert != "" && t.Cert == t.Key {
		cert, err = selfSigned()
		if err != nil {
			return nil, fmt.Errorf("tlslayer: generating self-signed cert: %w", err)
		}
	} else {
		cert, err = loadKeyPair(t.Cert, t.Key)
		if err != nil {
			return nil, err
		}
	}

	if t.OCSP != "" {
		staple, err := os.ReadFile(t.OCSP)
		if err != nil {
			return nil, fmt.Errorf("tlslayer: reading ocsp staple %s: %w", t.OCSP, err)
		}
		if _, err := ocsp.ParseResponse(staple, nil); err != nil {
			flog.Warnf("tlslayer: ocsp staple %s failed to parse, serving unstapled: %v", t.OCSP, err)
		} else {
			cert.OCSPStaple = staple
		}
	}

	versions, err := parseVersions(t.Versions)
	if err != nil {
		return nil, err
	}
	minV, maxV := versionBounds(versions)

	return &ServerConfig{tlsConfig: &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   t.ALPNs,
		MinVersion:   minV,
		MaxVersion:   maxV,
	}}, nil
}

func loadKeyPair(certPath, keyPath string) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlslayer: reading cert %s: %w", certPath, err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlslayer: reading key %s: %w", keyPath, err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlslayer: parsing keypair %s/%s: %w", certPath, keyPath, err)
	}
	return cert, nil
}

// selfSigned generates an ephemeral ECDSA P-256 certificate valid for one
// year, used when a listen half's cert and key fields name the same path
// (spec §4.4's "no real certificate configured" shorthand).
func selfSigned() (tls.Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "midori self-signed"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return tls.X509KeyPair(certPEM, keyPEM)
}

// TLSConfig exposes the compiled *tls.Config directly, for layers like
// quiclayer whose transport performs its own TLS handshake internally.
func (sc *ServerConfig) TLSConfig() *tls.Config { return sc.tlsConfig }

// WrapListener wraps inner so that each accepted base connection performs
// the TLS server handshake before being handed to the next layer.
func WrapListener(inner stream.BaseListener, sc *ServerConfig) stream.Listener {
	return &serverListener{inner: inner, cfg: sc}
}

type serverListener struct {
	inner stream.BaseListener
	cfg   *ServerConfig
}

func (l *serverListener) AcceptBase() (stream.Stream, net.Addr, error) {
	return l.inner.AcceptBase()
}

func (l *serverListener) Addr() net.Addr { return l.inner.Addr() }
func (l *serverListener) Close() error   { return l.inner.Close() }

// Accept performs the TLS handshake over an already-accepted base stream.
func (l *serverListener) Accept(base stream.Stream) (stream.Stream, error) {
	tlsConn := tls.Server(streamConn{base}, l.cfg.tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		base.Close()
		return nil, fmt.Errorf("tlslayer: server handshake: %w", err)
	}
	return &Stream{Conn: tlsConn}, nil
}

var _ stream.Listener = (*serverListener)(nil)
