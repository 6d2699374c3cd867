// Package udpstream turns one UDP socket into many per-peer pseudo-streams
// (spec §4.3). A Demux reads datagrams off the shared socket and routes
// them by source address into a bounded per-peer channel; Stream then
// wraps that channel directly into a bare byte pipe with no added framing,
// since the peer is an arbitrary external UDP client/server and not
// another Midori instance. The channel-routing idiom follows the teacher's
// internal/tnet/udp/{demux,listen}.go.
package udpstream

import (
	"io"
	"net"
	"sync"
	"time"

	"midori/internal/flog"
)

// UDPTimeout is the per-peer inactivity timeout (spec §3, §4.3): an entry
// with no traffic for this long is removed and its pseudo-stream observes
// EOF.
const UDPTimeout = 20 * time.Second

// UDPBufSize is the maximum datagram size the accept loop reads (spec §4.3).
const UDPBufSize = 64 * 1024

const clientChanSize = 4 // spec §5: bounded capacity of 4 byte chunks

type packet struct {
	data []byte
}

// peerConn holds the channel a single peer's datagrams are routed into.
type peerConn struct {
	ch      chan packet
	addr    net.Addr
	timer   *time.Timer
	closeMu sync.Mutex
	closed  bool
}

func (p *peerConn) resetTimer(d time.Duration, onExpire func()) {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(d, onExpire)
}

func (p *peerConn) close() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
	}
	close(p.ch)
}

// Demux reads from a single net.PacketConn and routes datagrams to
// per-peer channels keyed by source address string (spec: "UDP demux
// map"). At most one entry exists per peer (invariant, spec §3).
type Demux struct {
	pConn   net.PacketConn
	mu      sync.RWMutex
	peers   map[string]*peerConn
	newConn chan *peerConn
	done    chan struct{}
}

// NewDemux starts the read loop immediately.
func NewDemux(pConn net.PacketConn) *Demux {
	d := &Demux{
		pConn:   pConn,
		peers:   make(map[string]*peerConn),
		newConn: make(chan *peerConn, 64),
		done:    make(chan struct{}),
	}
	go d.readLoop()
	return d
}

func (d *Demux) readLoop() {
	defer close(d.done)
	buf := make([]byte, UDPBufSize)
	for {
		n, peerAddr, err := d.pConn.ReadFrom(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		key := peerAddr.String()

		d.mu.RLock()
		pc, ok := d.peers[key]
		d.mu.RUnlock()

		if ok {
			select {
			case pc.ch <- packet{data: data}:
				pc.resetTimer(UDPTimeout, func() { d.expire(key) })
			default:
				flog.Debugf("udpstream: dropping datagram from %s, channel full", key)
			}
			continue
		}

		pc = &peerConn{ch: make(chan packet, clientChanSize), addr: peerAddr}
		d.mu.Lock()
		d.peers[key] = pc
		d.mu.Unlock()

		pc.ch <- packet{data: data}
		pc.resetTimer(UDPTimeout, func() { d.expire(key) })

		select {
		case d.newConn <- pc:
		default:
			flog.Warnf("udpstream: accept backlog full, dropping new peer %s", key)
			d.removePeer(key)
		}
	}
}

func (d *Demux) expire(key string) {
	d.mu.Lock()
	pc, ok := d.peers[key]
	if ok {
		delete(d.peers, key)
	}
	d.mu.Unlock()
	if ok {
		flog.Debugf("udpstream: peer %s idle for %s, removing", key, UDPTimeout)
		pc.close()
	}
}

func (d *Demux) removePeer(key string) {
	d.mu.Lock()
	pc, ok := d.peers[key]
	if ok {
		delete(d.peers, key)
	}
	d.mu.Unlock()
	if ok {
		pc.close()
	}
}

// Accept waits for a new peer's first datagram, or returns net.ErrClosed
// once the read loop has stopped.
func (d *Demux) Accept() (*peerConn, error) {
	select {
	case pc := <-d.newConn:
		return pc, nil
	case <-d.done:
		return nil, net.ErrClosed
	}
}

// Close shuts down the demuxer and all live peer channels.
func (d *Demux) Close() error {
	err := d.pConn.Close()
	d.mu.Lock()
	for key, pc := range d.peers {
		delete(d.peers, key)
		pc.close()
	}
	d.mu.Unlock()
	return err
}

// PeerCount reports how many peers currently have a live pseudo-stream;
// used by tests to assert the demux invariant (spec §8 property 4).
func (d *Demux) PeerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// peerReader adapts a peerConn's channel into an io.Reader/net.Conn shape,
// the bare byte pipe a Stream wraps directly, mirroring the teacher's
// clientConnReader in internal/tnet/udp/demux.go.
type peerReader struct {
	pc     *peerConn
	pConn  net.PacketConn
	buf    []byte
}

func newPeerReader(pc *peerConn, pConn net.PacketConn) *peerReader {
	return &peerReader{pc: pc, pConn: pConn}
}

func (r *peerReader) Read(b []byte) (int, error) {
	if len(r.buf) > 0 {
		n := copy(b, r.buf)
		r.buf = r.buf[n:]
		return n, nil
	}
	pkt, ok := <-r.pc.ch
	if !ok {
		return 0, io.EOF
	}
	n := copy(b, pkt.data)
	if n < len(pkt.data) {
		r.buf = pkt.data[n:]
	}
	return n, nil
}

func (r *peerReader) Write(b []byte) (int, error) {
	return r.pConn.WriteTo(b, r.pc.addr)
}

func (r *peerReader) Close() error                       { return nil }
func (r *peerReader) LocalAddr() net.Addr                { return r.pConn.LocalAddr() }
func (r *peerReader) RemoteAddr() net.Addr               { return r.pc.addr }
func (r *peerReader) SetDeadline(t time.Time) error      { return nil }
func (r *peerReader) SetReadDeadline(t time.Time) error  { return nil }
func (r *peerReader) SetWriteDeadline(t time.Time) error { return nil }
