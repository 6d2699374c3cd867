// Package buffer provides pooled byte slices for the stream pump's hot
// copy path, avoiding one allocation per Read call under load.
package buffer

import "sync"

// CopySize is the generic stream pump's per-direction read buffer size
// (spec: BUF_SIZE).
const CopySize = 16 * 1024

// Pool hands out CopySize-byte slices for the generic (non-splice) pump.
var Pool = sync.Pool{
	New: func() any {
		b := make([]byte, CopySize)
		return &b
	},
}

// Get returns a pooled buffer; Put returns it for reuse.
func Get() *[]byte {
	return Pool.Get().(*[]byte)
}

func Put(b *[]byte) {
	Pool.Put(b)
}
