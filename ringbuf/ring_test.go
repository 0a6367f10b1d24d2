// ring_test.go — unit and property-based tests for RingBuffer.
package ringbuf

import (
	"math/rand"
	"testing"
)

func TestNewEmpty(t *testing.T) {
	r := New(16)
	if !r.Empty() {
		t.Fatalf("new buffer should be empty")
	}
	if r.DataSize() != 0 {
		t.Fatalf("expected DataSize 0, got %d", r.DataSize())
	}
	if r.FreeSpace() != 16 {
		t.Fatalf("expected FreeSpace 16, got %d", r.FreeSpace())
	}
}

func TestAppendConsume(t *testing.T) {
	r := New(8)
	n := r.Append([]byte("hello"))
	if n != 5 {
		t.Fatalf("expected 5 bytes appended, got %d", n)
	}
	data, ok := r.ReadView()
	if !ok || string(data) != "hello" {
		t.Fatalf("unexpected read view: %q ok=%v", data, ok)
	}
	r.Consume(5)
	if !r.Empty() {
		t.Fatalf("expected empty after consuming all data")
	}
}

func TestAppendWrap(t *testing.T) {
	r := New(8)
	r.Append([]byte("abcdefg")) // 7 bytes, 1 free
	r.Consume(5)                // head=5, tail=7, 2 bytes left ("fg")
	n := r.Append([]byte("XYZW"))
	// contiguous writable run is [7,8) = 1 byte before wrap
	if n != 1 {
		t.Fatalf("expected short append of 1 byte before wrap, got %d", n)
	}
	n2 := r.Append([]byte("XYZW")[n:])
	if n2 != 3 {
		t.Fatalf("expected remaining 3 bytes appended after wrap, got %d", n2)
	}
	if r.DataSize() != 6 {
		t.Fatalf("expected DataSize 6, got %d", r.DataSize())
	}
}

func TestFullBuffer(t *testing.T) {
	r := New(4)
	n := r.Append([]byte("abcd"))
	if n != 4 {
		t.Fatalf("expected to fill buffer, got %d", n)
	}
	if !r.Full() {
		t.Fatalf("expected buffer to report full")
	}
	if r.Append([]byte("e")) != 0 {
		t.Fatalf("expected append to fail on full buffer")
	}
	r.Consume(1)
	if r.Full() {
		t.Fatalf("expected buffer to no longer be full after consume")
	}
	if r.Append([]byte("e")) != 1 {
		t.Fatalf("expected 1 byte of free space after consume")
	}
}

func TestConsumeMoreThanAvailable(t *testing.T) {
	r := New(8)
	r.Append([]byte("ab"))
	r.Consume(100)
	if !r.Empty() {
		t.Fatalf("over-consuming should clamp to DataSize and leave buffer empty")
	}
}

// TestRingBufferInvariants performs randomized Append/Consume sequences and
// checks DataSize+FreeSpace==Capacity at every step, the way the teacher's
// property_ring_test.go checks size invariants on pool.RingBuffer[T].
func TestRingBufferInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for seed := 0; seed < 10; seed++ {
		r := New(64)
		tracked := 0
		for i := 0; i < 5000; i++ {
			if rng.Intn(2) == 0 {
				n := rng.Intn(20) + 1
				data := make([]byte, n)
				written := r.Append(data)
				tracked += written
			} else {
				n := rng.Intn(20) + 1
				before := r.DataSize()
				r.Consume(n)
				tracked -= before - r.DataSize()
			}
			if r.DataSize()+r.FreeSpace() != r.Capacity() {
				t.Fatalf("invariant broken: DataSize=%d FreeSpace=%d Capacity=%d",
					r.DataSize(), r.FreeSpace(), r.Capacity())
			}
			if r.DataSize() != tracked {
				t.Fatalf("DataSize mismatch: got %d, tracked %d", r.DataSize(), tracked)
			}
		}
	}
}

func TestReadViewAcrossWrap(t *testing.T) {
	r := New(8)
	r.Append([]byte("ABCDEFG"))
	r.Consume(7)
	in := []byte("12345") // wraps: 1 byte before wrap, 4 after
	for len(in) > 0 {
		n := r.Append(in)
		if n == 0 {
			t.Fatalf("append made no progress with %d bytes left", len(in))
		}
		in = in[n:]
	}
	var got []byte
	for {
		data, ok := r.ReadView()
		if !ok {
			break
		}
		got = append(got, data...)
		r.Consume(len(data))
	}
	if string(got) != "12345" {
		t.Fatalf("expected \"12345\" reconstructed across wrap, got %q", got)
	}
}
