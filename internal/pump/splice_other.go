//go:build !linux

package pump

import "midori/internal/stream"

// trySplice has no non-Linux implementation; every pump falls back to
// the generic buffered copy.
func trySplice(a, b stream.Stream) (err error, ok bool) {
	return nil, false
}
