package wal

import "sync"

// Pools amortize allocation on the commit hot path: every committed
// transaction acquires and releases a WALEntry (pkg/durability's
// WriteCommit), so without pooling each commit would allocate a fresh
// entry and payload buffer under the commit lock.
var (
	entryPool = sync.Pool{
		New: func() interface{} {
			return &WALEntry{
				Payload: make([]byte, 0, 4096),
			}
		},
	}

	bufferPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 0, 8192)
			return &buf
		},
	}
)

// AcquireEntry fetches a pooled WALEntry. Callers must ReleaseEntry it.
func AcquireEntry() *WALEntry {
	return entryPool.Get().(*WALEntry)
}

// ReleaseEntry zeroes and returns e to the pool.
func ReleaseEntry(e *WALEntry) {
	e.Header = WALHeader{}
	e.Payload = e.Payload[:0]
	entryPool.Put(e)
}

// AcquireBuffer fetches a pooled byte-slice pointer for scratch encoding.
func AcquireBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// ReleaseBuffer returns buf to the pool.
func ReleaseBuffer(buf *[]byte) {
	*buf = (*buf)[:0]
	bufferPool.Put(buf)
}
