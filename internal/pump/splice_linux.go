//go:build linux

package pump

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"midori/internal/stream"
)

// splicePipeSize bounds how much in-kernel buffering each direction's
// relay pipe carries between the two splice(2) calls.
const splicePipeSize = 64 * 1024

// rawStream is implemented by layers that expose their underlying socket,
// currently only internal/plain.Stream. Muxed or encrypted streams (TLS,
// WS, H2, QUIC, UDP pseudo-streams) never satisfy this, so they always
// fall back to the generic pump.
type rawStream interface {
	Raw() net.Conn
}

// trySplice attempts the zero-copy fast path in both directions; ok is
// false when either side cannot expose a raw fd, in which case the
// generic pump should be used instead.
func trySplice(a, b stream.Stream) (err error, ok bool) {
	aConn, ok1 := rawSyscallConn(a)
	bConn, ok2 := rawSyscallConn(b)
	if !ok1 || !ok2 {
		return nil, false
	}

	errCh := make(chan error, 2)
	go func() { errCh <- spliceLoop(bConn, aConn) }()
	go func() { errCh <- spliceLoop(aConn, bConn) }()

	err1 := <-errCh
	err2 := <-errCh
	a.Close()
	b.Close()

	if err1 != nil {
		return err1, true
	}
	return err2, true
}

func rawSyscallConn(s stream.Stream) (syscall.RawConn, bool) {
	rs, ok := s.(rawStream)
	if !ok {
		return nil, false
	}
	sc, ok := rs.Raw().(syscall.Conn)
	if !ok {
		return nil, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}
	return rc, true
}

// spliceLoop moves bytes from src to dst entirely in the kernel via an
// intermediate pipe, using the raw fds' Read/Write callbacks so the Go
// runtime poller parks the goroutine between EAGAIN retries instead of
// busy-spinning. On source EOF it shuts down dst's write half so the peer
// observes EOF while the reverse direction keeps running (spec §4.9),
// matching the generic pump's CloseWrite and the original implementation's
// unconditional w.shutdown() once its copy loop sees a zero-length splice.
func spliceLoop(dst, src syscall.RawConn) error {
	r, w, err := pipe2()
	if err != nil {
		return err
	}
	defer unix.Close(r)
	defer unix.Close(w)

	for {
		n, err := spliceFromSocket(src, w)
		if err != nil {
			return err
		}
		if n == 0 {
			return shutdownWrite(dst)
		}
		if err := spliceToSocket(dst, r, n); err != nil {
			return err
		}
	}
}

// shutdownWrite half-closes dst's write side via SHUT_WR, signalling EOF
// to the peer without tearing down the read side or the fd itself.
func shutdownWrite(dst syscall.RawConn) error {
	var serr error
	cerr := dst.Control(func(fd uintptr) {
		serr = unix.Shutdown(int(fd), unix.SHUT_WR)
	})
	if cerr != nil {
		return cerr
	}
	return serr
}

func pipe2() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func spliceFromSocket(src syscall.RawConn, pipeWrite int) (int, error) {
	var n int
	var serr error
	cerr := src.Read(func(fd uintptr) bool {
		n, serr = unix.Splice(int(fd), nil, pipeWrite, nil, splicePipeSize, unix.SPLICE_F_NONBLOCK|unix.SPLICE_F_MOVE)
		if errors.Is(serr, unix.EAGAIN) {
			return false
		}
		return true
	})
	if cerr != nil {
		return 0, cerr
	}
	return n, serr
}

func spliceToSocket(dst syscall.RawConn, pipeRead int, n int) error {
	remaining := n
	for remaining > 0 {
		var written int
		var werr error
		cerr := dst.Write(func(fd uintptr) bool {
			written, werr = unix.Splice(pipeRead, nil, int(fd), nil, remaining, unix.SPLICE_F_NONBLOCK|unix.SPLICE_F_MOVE)
			if errors.Is(werr, unix.EAGAIN) {
				return false
			}
			return true
		})
		if cerr != nil {
			return cerr
		}
		if werr != nil {
			return werr
		}
		remaining -= written
	}
	return nil
}
