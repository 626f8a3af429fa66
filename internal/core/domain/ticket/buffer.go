package ticket

// Buffer is a byte buffer that tracks its allocated capacity separately from
// the length in use. Grow reuses the backing array whenever it is already big
// enough and never shrinks it.
type Buffer struct {
	data []byte
	n    int
}

// Allocated reports whether a backing array is present.
func (b *Buffer) Allocated() bool { return b.data != nil }

// Len is the number of bytes in use.
func (b *Buffer) Len() int { return b.n }

// Cap is the size of the backing array.
func (b *Buffer) Cap() int { return len(b.data) }

// Bytes returns the in-use portion of the buffer. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	if b.data == nil {
		return nil
	}
	return b.data[:b.n]
}

// Grow sets the in-use length to n, reallocating only when the current
// backing array is missing or too small.
func (b *Buffer) Grow(n int) []byte {
	if b.data == nil || len(b.data) < n {
		b.data = make([]byte, n)
	}
	b.n = n
	return b.data[:n]
}

// Reset replaces the backing array with a copy of p sized exactly len(p).
func (b *Buffer) Reset(p []byte) {
	b.data = make([]byte, len(p))
	copy(b.data, p)
	b.n = len(p)
}

// Release drops the backing array.
func (b *Buffer) Release() {
	b.data = nil
	b.n = 0
}
