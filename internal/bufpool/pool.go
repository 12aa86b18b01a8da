// Package bufpool recycles the large copy buffers used when streaming blob
// payloads, so concurrent transfers do not each allocate their own.
package bufpool

import "sync"

// CopySize is the buffer size handed to io.CopyBuffer for blob payloads.
const CopySize = 1 << 20

var pool = sync.Pool{
	New: func() any {
		return make([]byte, CopySize)
	},
}

// Get returns a CopySize buffer from the pool.
func Get() []byte {
	return pool.Get().([]byte)
}

// Put returns a buffer obtained from Get. Undersized buffers are discarded.
func Put(buf []byte) {
	if cap(buf) < CopySize {
		return
	}
	pool.Put(buf[:CopySize])
}
