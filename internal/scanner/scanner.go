// Package scanner extracts complete lines from the spans a worker claims on a
// shared cursor and hands the partial lines at span edges to a Sink.
//
// A Scanner yields only lines that start and end inside one span. For every
// non-empty span it reports one Message holding the span's head (the bytes
// before its first '\n') and tail (the bytes after its last '\n'). Fusing
// tail(i) with head(i+1) in label order recovers the lines the span edges cut,
// which is what boundary.Reconciler does once every scanner is done.
//
// Every line is therefore produced exactly once: either by the scanner whose
// span fully contains it, or by the reconciler.
package scanner

import (
	"bytes"
	"errors"
	"io"

	"rowscan/internal/cursor"
)

const (
	// DefaultSpanSize is the scratch buffer size per scanner.
	DefaultSpanSize = 32 << 20 // 32 MiB

	// DefaultMaxLineLen is the longest accepted line, excluding '\n'.
	DefaultMaxLineLen = 64
)

// Message carries the boundary fragments of one span.
type Message struct {
	Span uint64
	// Head holds the bytes before the span's first separator, or the whole
	// span when Split is false.
	Head []byte
	// Tail holds the bytes after the span's last separator.
	Tail []byte
	// Split reports whether the span contained at least one separator.
	Split bool
}

// Sink receives boundary messages. Implementations must be safe for
// concurrent use and must not retain the caller's goroutine.
type Sink interface {
	Send(Message) error
}

// Options configures a Scanner.
type Options struct {
	SpanSize   int
	MaxLineLen int
}

func (o Options) withDefaults() Options {
	if o.SpanSize <= 0 {
		o.SpanSize = DefaultSpanSize
	}
	if o.MaxLineLen <= 0 {
		o.MaxLineLen = DefaultMaxLineLen
	}
	return o
}

// Scanner is a per-worker line reader over a shared cursor. It is not safe for
// concurrent use; run one Scanner per goroutine on the same Cursor.
type Scanner struct {
	cur  *cursor.Cursor
	sink Sink
	opts Options

	buf   []byte
	data  []byte // buf[:span.N] while a span is open, nil otherwise
	pos   int    // next unread byte in data
	span  cursor.Span
	head  []byte // aliases data
	split bool

	done  bool
	err   error
	lines int64
	spans int64
}

// New returns a Scanner claiming spans from cur and reporting fragments to sink.
func New(cur *cursor.Cursor, sink Sink, opts Options) *Scanner {
	opts = opts.withDefaults()
	return &Scanner{
		cur:  cur,
		sink: sink,
		opts: opts,
		buf:  make([]byte, opts.SpanSize),
	}
}

// ReadLine returns the next line (without its '\n') that lies entirely inside
// one span. The returned slice aliases the scanner's buffer and is only valid
// until the next call. ReadLine returns io.EOF once the source is exhausted;
// any other error is sticky.
func (s *Scanner) ReadLine() ([]byte, error) {
	for {
		if s.err != nil {
			return nil, s.err
		}
		if s.data == nil {
			if s.done {
				return nil, io.EOF
			}
			if err := s.nextSpan(); err != nil {
				s.err = err
				return nil, err
			}
			continue
		}

		rest := s.data[s.pos:]
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			if err := s.closeSpan(rest); err != nil {
				s.err = err
				return nil, err
			}
			continue
		}
		if i > s.opts.MaxLineLen {
			s.err = s.tooLong(i)
			return nil, s.err
		}
		s.pos += i + 1
		s.lines++
		return rest[:i], nil
	}
}

// Lines returns the number of lines yielded by ReadLine so far.
func (s *Scanner) Lines() int64 { return s.lines }

// Spans returns the number of spans this scanner claimed.
func (s *Scanner) Spans() int64 { return s.spans }

// nextSpan claims the next span and captures its head fragment.
func (s *Scanner) nextSpan() error {
	sp, err := s.cur.Claim(s.buf)
	if errors.Is(err, io.EOF) {
		s.done = true
		return nil
	}
	if err != nil {
		return err
	}
	s.spans++
	s.span = sp
	s.data = s.buf[:sp.N]
	if sp.Final() {
		s.done = true
	}

	i := bytes.IndexByte(s.data, '\n')
	if i < 0 {
		// No separator: the whole span is the middle of one line.
		s.head, s.split, s.pos = s.data, false, len(s.data)
	} else {
		s.head, s.split, s.pos = s.data[:i], true, i+1
	}
	if len(s.head) > s.opts.MaxLineLen {
		return s.tooLong(len(s.head))
	}
	return nil
}

// closeSpan reports the span's fragments and releases the buffer.
func (s *Scanner) closeSpan(tail []byte) error {
	if len(tail) > s.opts.MaxLineLen {
		return s.tooLong(len(tail))
	}
	msg := Message{
		Span:  s.span.Index,
		Head:  bytes.Clone(s.head),
		Tail:  bytes.Clone(tail),
		Split: s.split,
	}
	s.data, s.head, s.pos = nil, nil, 0
	return s.sink.Send(msg)
}

func (s *Scanner) tooLong(n int) error {
	return &LineTooLongError{
		Span:   s.span.Index,
		Offset: s.span.Offset,
		Len:    n,
		Max:    s.opts.MaxLineLen,
	}
}
