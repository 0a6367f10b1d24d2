// File: conn/connection.go
//
// Connection bundles the pieces WorkerThread kept in its connections map in
// the original source (connection.h): an inbound buffer, an outbound
// buffer, and one in-flight Message. Ring buffer backing arrays are drawn
// from a pool.SyncPool[[]byte] so repeated connect/disconnect churn on a
// worker doesn't keep allocating 1 MiB arrays.
package conn

import (
	"github.com/momentics/fixgw/fix"
	"github.com/momentics/fixgw/pool"
	"github.com/momentics/fixgw/ringbuf"
)

// BufferPool recycles the []byte backing arrays used by each Connection's
// two ring buffers.
type BufferPool = pool.SyncPool[[]byte]

// NewBufferPool builds a BufferPool whose arrays are sized capacity bytes.
func NewBufferPool(capacity int) *BufferPool {
	return pool.NewSyncPool(func() []byte {
		return make([]byte, capacity)
	})
}

// Connection is one accepted TCP socket's worker-side state. It is owned by
// exactly one worker goroutine for its entire lifetime and must never be
// touched from another goroutine.
type Connection struct {
	Fd       int
	Inbound  *ringbuf.RingBuffer
	Outbound *ringbuf.RingBuffer
	Message  fix.Message

	// WriteArmed tracks whether this fd is currently registered for
	// EPOLLOUT, so the worker only issues an epoll_ctl MOD when the
	// armed state actually needs to change.
	WriteArmed bool
}

// New builds a Connection for fd, drawing both ring buffers' backing
// arrays from bufPool.
func New(fd int, bufPool *BufferPool) *Connection {
	return &Connection{
		Fd:       fd,
		Inbound:  ringbuf.NewFromBuffer(bufPool.Get()),
		Outbound: ringbuf.NewFromBuffer(bufPool.Get()),
	}
}

// Release returns both ring buffers' backing arrays to bufPool and clears
// the in-flight message. The Connection itself must not be used afterward.
func (c *Connection) Release(bufPool *BufferPool) {
	inBuf := c.Inbound.Bytes()
	outBuf := c.Outbound.Bytes()
	c.Message.Reset()
	bufPool.Put(inBuf)
	bufPool.Put(outBuf)
}
