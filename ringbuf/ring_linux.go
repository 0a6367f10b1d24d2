//go:build linux
// +build linux

// File: ringbuf/ring_linux.go
//
// Linux non-blocking socket read/write primitives for RingBuffer, mirroring
// CircularBuffer::writeFromSocket / CircularBuffer::readToSocket from the
// original source, translated onto golang.org/x/sys/unix the way the
// teacher's internal/transport package calls into unix.Read/unix.Write.

package ringbuf

import "golang.org/x/sys/unix"

// WriteFromSocket issues one non-blocking read from fd into the contiguous
// writable run. It returns the number of bytes read, 0 with a nil error on
// orderly peer close, or 0 with ErrWouldBlock if the contiguous writable
// run is empty or the socket has no data ready. It never reads across the
// wrap boundary in a single call — the caller loops to drain both runs.
func (r *RingBuffer) WriteFromSocket(fd int) (int, error) {
	writable := r.contiguousWritable()
	if writable == 0 {
		return 0, ErrWouldBlock
	}
	n, err := unix.Read(fd, r.buf[r.tail:r.tail+writable])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	if n > 0 {
		r.tail = (r.tail + n) % len(r.buf)
		if r.tail == r.head {
			r.full = true
		}
	}
	return n, nil
}

// ReadToSocket issues one non-blocking write to fd of the contiguous
// readable run, advancing head by the number of bytes actually written.
func (r *RingBuffer) ReadToSocket(fd int) (int, error) {
	data, ok := r.ReadView()
	if !ok {
		return 0, nil
	}
	n, err := unix.Write(fd, data)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return n, err
	}
	if n > 0 {
		r.Consume(n)
	}
	return n, nil
}
