// Package cursor implements the shared read cursor that partitions one file
// into disjoint, gapless spans for concurrent scanners.
//
// Every scanner bound to the same Cursor claims spans through Claim. A claim
// reserves the next unclaimed byte range and assigns the span's sequence label
// in a single critical section, so label order always equals physical order in
// the file. The positioned read that fills the caller's buffer happens outside
// the lock; concurrent ReadAt calls on *os.File and mmap readers are safe.
package cursor

import (
	"fmt"
	"io"
	"sync"
)

// Span describes one claimed byte range of the source.
type Span struct {
	// Index is the span's sequence label. Labels start at 0 and follow the
	// physical order of the spans in the file.
	Index uint64
	// Offset is the absolute file offset of the first byte of the span.
	Offset int64
	// N is the number of bytes read into the caller's buffer.
	N int
	// Cap is the buffer capacity the span was claimed with.
	Cap int
}

// Final reports whether the span is shorter than the buffer it was read into,
// i.e. it is the terminal span of the file.
func (s Span) Final() bool { return s.N < s.Cap }

// End returns the offset one past the last byte of the span.
func (s Span) End() int64 { return s.Offset + int64(s.N) }

// Cursor hands out consecutive spans of an io.ReaderAt of known size.
type Cursor struct {
	r    io.ReaderAt
	size int64

	mu   sync.Mutex
	off  int64
	next uint64
}

// New returns a Cursor positioned at offset 0 of r.
func New(r io.ReaderAt, size int64) *Cursor {
	return &Cursor{r: r, size: size}
}

// Size returns the total number of bytes the cursor will hand out.
func (c *Cursor) Size() int64 { return c.size }

// Claim reserves the next len(buf) bytes (fewer at the end of the source),
// labels the span and reads it into buf. It returns io.EOF, without consuming
// a label, once every byte has been claimed.
func (c *Cursor) Claim(buf []byte) (Span, error) {
	if len(buf) == 0 {
		return Span{}, fmt.Errorf("cursor: claim with empty buffer")
	}

	c.mu.Lock()
	if c.off >= c.size {
		c.mu.Unlock()
		return Span{}, io.EOF
	}
	want := int64(len(buf))
	if rem := c.size - c.off; rem < want {
		want = rem
	}
	sp := Span{Index: c.next, Offset: c.off, Cap: len(buf)}
	c.next++
	c.off += want
	c.mu.Unlock()

	n, err := c.r.ReadAt(buf[:want], sp.Offset)
	sp.N = n
	if int64(n) == want {
		// io.ReaderAt may report io.EOF together with a full read at the end.
		return sp, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return sp, fmt.Errorf("cursor: read span %d at offset %d (%d/%d bytes): %w", sp.Index, sp.Offset, n, want, err)
}

// Claimed returns the number of span labels handed out so far.
func (c *Cursor) Claimed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
