package endpoint

import (
	"errors"
	"fmt"
	"net"

	"midori/internal/conf"
	"midori/internal/flog"
	"midori/internal/pump"
	"midori/internal/stream"
)

// Endpoint owns one listen/remote pair: a running accept loop that dials
// the configured remote for every accepted flow and pumps bytes between
// them until either side closes (spec §4.8). The remote connector is
// built once and reused across flows so mux-capable protocols (h2, quic)
// amortize their shared handle the way spec §3 intends.
type Endpoint struct {
	listenAddr string
	remoteAddr string
	listener   stream.Listener
	connector  stream.Connector
}

// New composes the listener and connector stacks for one configured
// endpoint.
func New(ep conf.Endpoint) (*Endpoint, error) {
	listener, err := BuildListener(ep.Listen)
	if err != nil {
		return nil, fmt.Errorf("endpoint: %w", err)
	}
	connector, err := BuildConnector(ep.Remote)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("endpoint: %w", err)
	}
	return &Endpoint{
		listenAddr: ep.Listen.Addr,
		remoteAddr: ep.Remote.Addr,
		listener:   listener,
		connector:  connector,
	}, nil
}

// Serve runs the accept loop until the listener is closed. A transient
// AcceptBase failure (spec §7's AcceptBase kind) is logged and the loop
// continues; only net.ErrClosed, signalling a deliberate Close, ends the
// loop and returns nil.
func (e *Endpoint) Serve() error {
	flog.Infof("endpoint: %s -> %s: listening", e.listenAddr, e.remoteAddr)
	for {
		base, peer, err := e.listener.AcceptBase()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			flog.Warnf("endpoint: %s: accept: %v", e.listenAddr, err)
			continue
		}
		go e.handle(base, peer)
	}
}

// Close tears down the listener; in-flight flows run to completion.
func (e *Endpoint) Close() error {
	return e.listener.Close()
}

func (e *Endpoint) handle(base stream.Stream, peer net.Addr) {
	local, err := e.listener.Accept(base)
	if err != nil {
		flog.Warnf("endpoint: %s: handshake from %s failed: %v", e.listenAddr, peer, err)
		return
	}

	remote, err := e.connector.Connect()
	if err != nil {
		flog.Warnf("endpoint: %s: dialing %s for %s failed: %v", e.listenAddr, e.remoteAddr, peer, err)
		local.Close()
		return
	}

	flog.Debugf("endpoint: %s: %s <-> %s", e.listenAddr, peer, e.remoteAddr)
	if err := pump.Run(local, remote); err != nil {
		flog.Debugf("endpoint: %s: flow from %s ended: %v", e.listenAddr, peer, err)
	}
}
