// Package bufpool provides pooled float32 scratch buffers to avoid
// hot-path allocations in the observation gather/pool/transform pipeline.
package bufpool

import "sync"

// Bucket sizes, in float32 elements.
const (
	size1k  = 1 << 10
	size8k  = 1 << 13
	size64k = 1 << 16
	size1m  = 1 << 20
)

var global = struct {
	pool1k  sync.Pool
	pool8k  sync.Pool
	pool64k sync.Pool
	pool1m  sync.Pool
}{
	pool1k:  sync.Pool{New: func() any { b := make([]float32, size1k); return &b }},
	pool8k:  sync.Pool{New: func() any { b := make([]float32, size8k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]float32, size64k); return &b }},
	pool1m:  sync.Pool{New: func() any { b := make([]float32, size1m); return &b }},
}

// Get returns a pooled buffer of at least the requested length.
// Callers must call Put when done.
func Get(n int) []float32 {
	switch {
	case n <= size1k:
		return (*global.pool1k.Get().(*[]float32))[:n]
	case n <= size8k:
		return (*global.pool8k.Get().(*[]float32))[:n]
	case n <= size64k:
		return (*global.pool64k.Get().(*[]float32))[:n]
	case n <= size1m:
		return (*global.pool1m.Get().(*[]float32))[:n]
	default:
		return make([]float32, n)
	}
}

// Put returns a buffer to the pool. Buffers with non-standard capacity
// (bigger than size1m, allocated directly by Get's default case) are
// dropped rather than pooled.
func Put(buf []float32) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size1k:
		global.pool1k.Put(&buf)
	case size8k:
		global.pool8k.Put(&buf)
	case size64k:
		global.pool64k.Put(&buf)
	case size1m:
		global.pool1m.Put(&buf)
	}
}
