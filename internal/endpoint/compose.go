// Package endpoint composes the layered listener/connector stacks that
// spec §4.8 describes and runs the accept-dial-pump loop for one
// configured relay endpoint. Composition order is: network kind selects
// the base transport (plain TCP/UDS, or the UDP pseudo-stream
// demultiplexer), tls wraps it unless the application protocol is QUIC
// (whose handshake is intrinsic to the transport and bypasses
// internal/plain + internal/tlslayer entirely), and ws/h2 wrap the
// result last.
package endpoint

import (
	"fmt"

	"midori/internal/addr"
	"midori/internal/conf"
	"midori/internal/h2layer"
	"midori/internal/plain"
	"midori/internal/quiclayer"
	"midori/internal/stream"
	"midori/internal/tlslayer"
	"midori/internal/udpstream"
	"midori/internal/wslayer"
)

// BuildListener composes the full listener stack for one HalfConfig.
func BuildListener(h conf.HalfConfig) (stream.Listener, error) {
	a, err := addr.Parse(h.Addr)
	if err != nil {
		return nil, fmt.Errorf("endpoint: parsing listen addr %q: %w", h.Addr, err)
	}

	if h.Trans.Proto == conf.ProtoQUIC {
		serverCfg, err := tlslayer.BuildServerConfig(h.TLS)
		if err != nil {
			return nil, fmt.Errorf("endpoint: quic tls config: %w", err)
		}
		return quiclayer.Listen(a, serverCfg.TLSConfig())
	}

	base, err := buildBaseListener(h, a)
	if err != nil {
		return nil, err
	}

	var listener stream.Listener
	if h.TLS.Mode == conf.TLSServer {
		serverCfg, err := tlslayer.BuildServerConfig(h.TLS)
		if err != nil {
			return nil, fmt.Errorf("endpoint: tls config: %w", err)
		}
		listener = tlslayer.WrapListener(base, serverCfg)
	} else {
		listener = stream.WithIdentityAccept(base)
	}

	switch h.Trans.Proto {
	case conf.ProtoWS:
		return wslayer.WrapListener(listener, h.Trans), nil
	case conf.ProtoH2:
		return h2layer.WrapListener(listener, h.Trans), nil
	default:
		return listener, nil
	}
}

func buildBaseListener(h conf.HalfConfig, a addr.Addr) (stream.BaseListener, error) {
	if h.Net == conf.NetUDP {
		return udpstream.Listen(a)
	}
	return plain.Listen(h.Net, a)
}

// BuildConnector composes the full connector stack for one HalfConfig.
func BuildConnector(h conf.HalfConfig) (stream.Connector, error) {
	a, err := addr.Parse(h.Addr)
	if err != nil {
		return nil, fmt.Errorf("endpoint: parsing remote addr %q: %w", h.Addr, err)
	}

	if h.Trans.Proto == conf.ProtoQUIC {
		clientCfg, err := tlslayer.BuildClientConfig(h.TLS, a)
		if err != nil {
			return nil, fmt.Errorf("endpoint: quic tls config: %w", err)
		}
		return quiclayer.NewConnector(a, clientCfg.TLSConfig(), h.Trans), nil
	}

	base := buildBaseConnector(h, a)

	var connector stream.Connector = base
	if h.TLS.Mode == conf.TLSClient {
		clientCfg, err := tlslayer.BuildClientConfig(h.TLS, a)
		if err != nil {
			return nil, fmt.Errorf("endpoint: tls config: %w", err)
		}
		connector = tlslayer.WrapConnector(base, clientCfg)
	}

	switch h.Trans.Proto {
	case conf.ProtoWS:
		return wslayer.NewConnector(connector, a, h.Trans, h.TLS.Mode == conf.TLSClient), nil
	case conf.ProtoH2:
		return h2layer.NewConnector(connector, a, h.Trans, h.TLS.Mode == conf.TLSClient), nil
	default:
		return connector, nil
	}
}

func buildBaseConnector(h conf.HalfConfig, a addr.Addr) stream.Connector {
	if h.Net == conf.NetUDP {
		return udpstream.NewConnector(a)
	}
	return plain.NewConnector(h.Net, a)
}
