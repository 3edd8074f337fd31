package corehttp

import (
	"github.com/valyala/bytebufferpool"
)

// ByteBuffer is a resizable byte accumulator with amortized O(1) append,
// matching the growable-buffer component of the byte-stream subsystem.
// It is a thin facade over bytebufferpool.ByteBuffer, the teacher's own
// choice for this concern.
type ByteBuffer = bytebufferpool.ByteBuffer

var defaultBufferPool bytebufferpool.Pool

// NewByteBuffer returns an empty buffer that is not pool-managed.
func NewByteBuffer() *ByteBuffer {
	return new(ByteBuffer)
}

// AcquireByteBuffer returns an empty buffer from the shared pool.
//
// The returned buffer must be released with ReleaseByteBuffer once it is
// no longer needed; doing so reduces allocations on the hot request path.
func AcquireByteBuffer() *ByteBuffer {
	return defaultBufferPool.Get()
}

// ReleaseByteBuffer returns b to the shared pool. b.B must not be touched
// afterwards.
func ReleaseByteBuffer(b *ByteBuffer) {
	defaultBufferPool.Put(b)
}
