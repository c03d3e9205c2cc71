// Package buffer implements a growable byte queue with read/write cursors,
// the way a reactor-style connection accumulates partially consumed I/O.
//
// A Buffer is not safe for concurrent use: callers own exclusive access to
// it for the duration of a single Channel/Connection callback, per the
// event loop's no-overlap guarantee.
package buffer

// initialCapacity matches the teacher's default pool size class floor.
const initialCapacity = 1024

// Buffer is a contiguous byte store with read_idx <= write_idx <= cap(buf).
// The readable range is buf[readIdx:writeIdx]; the writable tail is
// buf[writeIdx:cap(buf)].
type Buffer struct {
	buf     []byte
	readIdx int
	writeIdx int
}

// New returns an empty Buffer with the default initial capacity.
func New() *Buffer {
	return &Buffer{buf: make([]byte, initialCapacity)}
}

// NewSize returns an empty Buffer with the given initial capacity.
func NewSize(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	return &Buffer{buf: make([]byte, n)}
}

// Len returns the number of readable bytes.
func (b *Buffer) Len() int { return b.writeIdx - b.readIdx }

// Cap returns the total backing capacity.
func (b *Buffer) Cap() int { return cap(b.buf) }

// WritableBytes returns the size of the writable tail.
func (b *Buffer) WritableBytes() int { return cap(b.buf) - b.writeIdx }

// PrependableBytes returns the number of bytes free before read_idx.
func (b *Buffer) PrependableBytes() int { return b.readIdx }

// Bytes returns the readable range. The slice aliases the Buffer's storage
// and is only valid until the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.readIdx:b.writeIdx]
}

// Reset discards all readable and writable content, reusing the backing
// array.
func (b *Buffer) Reset() {
	b.readIdx = 0
	b.writeIdx = 0
}

// EnsureWritable guarantees WritableBytes() >= n after return, preserving
// readable bytes byte-identically. It compacts before growing: if the sum
// of the front gap and the writable tail can satisfy n, readable bytes are
// shifted to offset 0 rather than reallocating.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.readIdx+b.WritableBytes() >= n {
		b.compact()
		return
	}
	b.grow(n)
}

func (b *Buffer) compact() {
	readable := b.Len()
	copy(b.buf, b.buf[b.readIdx:b.writeIdx])
	b.readIdx = 0
	b.writeIdx = readable
}

func (b *Buffer) grow(n int) {
	needed := b.writeIdx + n
	newCap := cap(b.buf)
	if newCap == 0 {
		newCap = initialCapacity
	}
	for newCap < needed {
		newCap *= 2
	}
	nb := make([]byte, newCap)
	copy(nb, b.buf[:b.writeIdx])
	b.buf = nb
}

// Append appends p to the writable tail, growing or compacting as needed.
func (b *Buffer) Append(p []byte) {
	b.EnsureWritable(len(p))
	n := copy(b.buf[b.writeIdx:cap(b.buf)], p)
	b.writeIdx += n
}

// AppendString appends s to the writable tail.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// AppendBuffer appends all readable bytes of other, leaving other unread
// (other is not consumed by this call).
func (b *Buffer) AppendBuffer(other *Buffer) {
	b.Append(other.Bytes())
}

// Read copies n readable bytes out and advances read_idx. Reading
// more than Len() bytes is a programming error.
func (b *Buffer) Read(n int) []byte {
	if n > b.Len() {
		panic("buffer: read past writable index")
	}
	out := make([]byte, n)
	copy(out, b.buf[b.readIdx:b.readIdx+n])
	b.readIdx += n
	b.retractIfEmpty()
	return out
}

// ReadAll copies out and consumes all readable bytes.
func (b *Buffer) ReadAll() []byte {
	return b.Read(b.Len())
}

// Drop discards n bytes from the front of the readable range without
// copying them out. Dropping more than Len() bytes is a programming error.
func (b *Buffer) Drop(n int) {
	if n > b.Len() {
		panic("buffer: drop past writable index")
	}
	b.readIdx += n
	b.retractIfEmpty()
}

// retractIfEmpty resets cursors to zero once the buffer has been fully
// drained, keeping the backing array warm for reuse without growth churn.
func (b *Buffer) retractIfEmpty() {
	if b.readIdx == b.writeIdx {
		b.readIdx = 0
		b.writeIdx = 0
	}
}

// PeekLine returns the bytes up to and including the first '\n' in the
// readable range, or nil if no newline is present. The returned slice
// aliases the Buffer's storage and is not consumed; callers that want to
// consume it must follow with Drop(len(line)).
func (b *Buffer) PeekLine() []byte {
	readable := b.Bytes()
	for i, c := range readable {
		if c == '\n' {
			return readable[:i+1]
		}
	}
	return nil
}

// ReadLine returns and consumes the bytes up to and including the first
// '\n', or nil (without consuming anything) if no newline is present yet.
func (b *Buffer) ReadLine() []byte {
	line := b.PeekLine()
	if line == nil {
		return nil
	}
	out := make([]byte, len(line))
	copy(out, line)
	b.Drop(len(line))
	return out
}
