package wire

import (
	"encoding/binary"
	"errors"

	pool "github.com/libp2p/go-buffer-pool"
)

// ErrShortBuffer signals that a decode step ran out of input. It is not
// a failure: the caller appends more transport bytes and retries.
var ErrShortBuffer = errors.New("wire: need more input")

// ErrDiscarded is returned when a byte range was released by
// DiscardReadBytes before it was requested.
var ErrDiscarded = errors.New("wire: byte range already discarded")

const minCap = 512

// Buffer is a growable byte accumulator with a reader index. The
// transport appends chunks as they arrive; the decoder consumes from
// the front and may rewind to a previously captured position as long as
// DiscardReadBytes has not released it. Storage is leased from the
// shared buffer pool and returned by Release.
//
// A Buffer is owned by a single encode or decode in flight; it is not
// safe for concurrent use.
type Buffer struct {
	buf  []byte
	r    int
	base int // stream offset of buf[0]
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferBytes creates a buffer primed with p.
func NewBufferBytes(p []byte) *Buffer {
	b := NewBuffer()
	b.Append(p)
	return b
}

// Append copies p to the end of the buffer.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.grow(len(p))
	b.buf = append(b.buf, p...)
}

// Write implements io.Writer so a Buffer can serve as an encoder sink.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

func (b *Buffer) grow(n int) {
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	newCap := cap(b.buf) * 2
	if newCap < minCap {
		newCap = minCap
	}
	for newCap < len(b.buf)+n {
		newCap *= 2
	}
	next := pool.Get(newCap)[:len(b.buf)]
	copy(next, b.buf)
	if cap(b.buf) > 0 {
		pool.Put(b.buf[:cap(b.buf)])
	}
	b.buf = next
}

// Readable returns the number of unread bytes.
func (b *Buffer) Readable() int {
	return len(b.buf) - b.r
}

// Position returns the absolute stream offset of the reader index,
// counting every byte ever appended.
func (b *Buffer) Position() int {
	return b.base + b.r
}

// Rewind moves the reader index back to an absolute position captured
// earlier with Position. The position must not have been discarded.
func (b *Buffer) Rewind(pos int) {
	if pos < b.base || pos > b.base+len(b.buf) {
		panic("wire: rewind outside retained range")
	}
	b.r = pos - b.base
}

// Range returns a view of the absolute stream range [from, to). The
// range must lie within retained bytes.
func (b *Buffer) Range(from, to int) ([]byte, error) {
	if from < b.base {
		return nil, ErrDiscarded
	}
	if to > b.base+len(b.buf) || from > to {
		return nil, ErrShortBuffer
	}
	return b.buf[from-b.base : to-b.base], nil
}

// Bytes returns a view of the unread bytes.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.r:]
}

// The fixed-width readers below do not check bounds; callers guard with
// Readable first, as the decoder state machine does before every step.

// ReadUint8 consumes one byte.
func (b *Buffer) ReadUint8() uint8 {
	v := b.buf[b.r]
	b.r++
	return v
}

// ReadUint16 consumes two bytes, big-endian.
func (b *Buffer) ReadUint16() uint16 {
	v := binary.BigEndian.Uint16(b.buf[b.r:])
	b.r += 2
	return v
}

// ReadUint32 consumes four bytes, big-endian.
func (b *Buffer) ReadUint32() uint32 {
	v := binary.BigEndian.Uint32(b.buf[b.r:])
	b.r += 4
	return v
}

// ReadUint64 consumes eight bytes, big-endian.
func (b *Buffer) ReadUint64() uint64 {
	v := binary.BigEndian.Uint64(b.buf[b.r:])
	b.r += 8
	return v
}

// ReadBytes consumes n bytes and returns a copy.
func (b *Buffer) ReadBytes(n int) []byte {
	out := make([]byte, n)
	b.ReadInto(out)
	return out
}

// ReadInto consumes len(dst) bytes into dst.
func (b *Buffer) ReadInto(dst []byte) {
	copy(dst, b.buf[b.r:])
	b.r += len(dst)
}

// Skip consumes n bytes without returning them.
func (b *Buffer) Skip(n int) {
	b.r += n
}

// DiscardReadBytes drops consumed bytes so long-lived streams do not
// grow without bound. Rewind targets and Range requests before the
// current position become invalid; a decoder verifying a payload
// signature must not discard until the message is done.
func (b *Buffer) DiscardReadBytes() {
	if b.r == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.r:])
	b.buf = b.buf[:n]
	b.base += b.r
	b.r = 0
}

// Release returns the storage to the pool. The buffer is empty and
// reusable afterwards.
func (b *Buffer) Release() {
	if cap(b.buf) > 0 {
		pool.Put(b.buf[:cap(b.buf)])
	}
	b.buf = nil
	b.r = 0
	b.base = 0
}
