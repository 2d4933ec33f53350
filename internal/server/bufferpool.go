package server

import "sync"

const (
	smallBufferSize  = 4096  // 4KB: socket reads
	mediumBufferSize = 32768 // 32KB: response body staging
)

// BufferPool manages reusable byte buffers in two size classes
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
}

// Global buffer pool instance
var globalBufferPool = &BufferPool{
	small: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, smallBufferSize)
			return &buf
		},
	},
	medium: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, mediumBufferSize)
			return &buf
		},
	},
}

// GetBuffer returns a buffer of at least the requested size
func GetBuffer(size int) []byte {
	switch {
	case size <= smallBufferSize:
		buf := globalBufferPool.small.Get().(*[]byte)
		return (*buf)[:size]
	case size <= mediumBufferSize:
		buf := globalBufferPool.medium.Get().(*[]byte)
		return (*buf)[:size]
	default:
		// Bigger than any class, let GC handle it
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf []byte) {
	switch cap(buf) {
	case smallBufferSize:
		fullBuf := buf[:smallBufferSize]
		globalBufferPool.small.Put(&fullBuf)
	case mediumBufferSize:
		fullBuf := buf[:mediumBufferSize]
		globalBufferPool.medium.Put(&fullBuf)
	}
	// Else: buffer is non-standard size, let GC handle it
}
