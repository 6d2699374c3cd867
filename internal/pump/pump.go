// Package pump copies bytes bidirectionally between two Streams until
// both directions finish (spec §4.9): a plain generic pump using pooled
// buffers, and on Linux, a zero-copy fast path via splice(2) when both
// sides expose a raw TCP/UDS socket fd (internal/plain.Stream.Raw()).
// Dispatch between the two happens once per flow, when Run starts, outside
// the hot copy loop, which is exactly the contract internal/stream documents.
package pump

import (
	"io"

	"midori/internal/pkg/buffer"
	"midori/internal/stream"
)

// Run copies a<->b until both directions observe EOF or an error, then
// closes both sides and returns the first error seen (nil on a clean
// mutual close). It tries the platform's zero-copy fast path first and
// falls back to the generic buffered copy when either side can't
// participate in it.
func Run(a, b stream.Stream) error {
	if err, ok := trySplice(a, b); ok {
		return err
	}
	return runGeneric(a, b)
}

func runGeneric(a, b stream.Stream) error {
	errCh := make(chan error, 2)
	go func() { errCh <- copyDirection(b, a) }()
	go func() { errCh <- copyDirection(a, b) }()

	err1 := <-errCh
	err2 := <-errCh
	a.Close()
	b.Close()

	if err1 != nil {
		return err1
	}
	return err2
}

// copyDirection copies src into dst using a pooled buffer, then
// half-closes dst so the peer sees EOF while the reverse direction keeps
// running.
func copyDirection(dst, src stream.Stream) error {
	buf := buffer.Get()
	defer buffer.Put(buf)

	_, err := io.CopyBuffer(dst, src, *buf)
	dst.CloseWrite()
	return err
}
