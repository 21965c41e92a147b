// Package boundary collects the fragments scanners leave at span edges and
// fuses them into the lines no single scanner could see.
//
// Scanners Send one scanner.Message per non-empty span. A single background
// goroutine drains an unbounded mailbox into a map keyed by span label, so a
// producer never blocks on the collector. Finish closes the mailbox, waits for
// the collector and walks the spans in label order, which the cursor
// guarantees is physical order.
package boundary

import (
	"errors"
	"fmt"
	"sync"

	"rowscan/internal/scanner"
)

var (
	// ErrClosed is returned by Send and Finish after Finish has been called.
	ErrClosed = errors.New("boundary: reconciler closed")

	// ErrMissingSpan means a span below the highest reported label never
	// reported its fragments, typically because its scanner failed.
	ErrMissingSpan = errors.New("boundary: missing span")
)

// Reconciler is safe for concurrent Send calls from any number of scanners.
type Reconciler struct {
	maxLineLen int

	mu      sync.Mutex
	pending []scanner.Message
	closed  bool
	wake    chan struct{} // capacity 1; signals pending work or close

	done  chan struct{}
	spans map[uint64]scanner.Message // owned by the collector until done
}

// New starts the collector goroutine. maxLineLen bounds every fused line; a
// non-positive value selects scanner.DefaultMaxLineLen.
func New(maxLineLen int) *Reconciler {
	if maxLineLen <= 0 {
		maxLineLen = scanner.DefaultMaxLineLen
	}
	r := &Reconciler{
		maxLineLen: maxLineLen,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		spans:      make(map[uint64]scanner.Message),
	}
	go r.collect()
	return r
}

// Send queues m for the collector. It never blocks on the collector.
func (r *Reconciler) Send(m scanner.Message) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.pending = append(r.pending, m)
	r.mu.Unlock()
	r.signal()
	return nil
}

func (r *Reconciler) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// collect moves queued messages into the span map until the mailbox is closed
// and drained.
func (r *Reconciler) collect() {
	defer close(r.done)

	var batch []scanner.Message
	for range r.wake {
		r.mu.Lock()
		batch, r.pending = r.pending, batch[:0]
		closed := r.closed
		r.mu.Unlock()

		for _, m := range batch {
			r.spans[m.Span] = m
		}
		clear(batch)
		// Send cannot append once closed is set, so this batch was the last.
		if closed {
			return
		}
	}
}

// Finish stops accepting messages, waits for the collector and returns the
// recovered lines in file order.
//
// Walking spans 0..max, the head of each span is appended to the carried tail
// of the previous one. A span that contains a separator terminates the carried
// line, which is emitted (even when empty, since a separator marks a real
// line), and starts a new carry from its own tail. A span without any
// separator only extends the carry. Bytes carried past the last span form the
// file's unterminated final line and are emitted when non-empty.
func (r *Reconciler) Finish() ([][]byte, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.closed = true
	r.mu.Unlock()
	r.signal()
	<-r.done

	if len(r.spans) == 0 {
		return nil, nil
	}
	var last uint64
	for k := range r.spans {
		last = max(last, k)
	}

	lines := make([][]byte, 0, len(r.spans))
	var carry []byte
	for k := uint64(0); k <= last; k++ {
		m, ok := r.spans[k]
		if !ok {
			return nil, fmt.Errorf("%w: %d of %d", ErrMissingSpan, k, last+1)
		}
		carry = append(carry, m.Head...)
		if len(carry) > r.maxLineLen {
			return nil, &scanner.LineTooLongError{Span: k, Offset: -1, Len: len(carry), Max: r.maxLineLen}
		}
		if !m.Split {
			continue
		}
		lines = append(lines, carry)
		carry = append([]byte(nil), m.Tail...)
	}
	if len(carry) > 0 {
		lines = append(lines, carry)
	}
	return lines, nil
}

// Spans reports how many spans have been collected. It is only meaningful
// after Finish.
func (r *Reconciler) Spans() int {
	select {
	case <-r.done:
		return len(r.spans)
	default:
		return 0
	}
}

var _ scanner.Sink = (*Reconciler)(nil)
