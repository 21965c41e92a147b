package boundary

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"rowscan/internal/scanner"
)

func msg(span uint64, head, tail string, split bool) scanner.Message {
	return scanner.Message{Span: span, Head: []byte(head), Tail: []byte(tail), Split: split}
}

func asStrings(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out
}

func TestFinish_FusesInSpanOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msgs []scanner.Message
		want []string
	}{
		{
			name: "no_spans",
			want: []string{},
		},
		{
			// "A;1.0\nB;2" | ".5\nA;3.0\n"
			name: "mid_line_cut",
			msgs: []scanner.Message{
				msg(1, ".5", "", true),
				msg(0, "A;1.0", "B;2", true),
			},
			want: []string{"A;1.0", "B;2.5"},
		},
		{
			// "A;1.0\n" | "B;2.5\n": span ends exactly on a separator.
			name: "cut_on_separator",
			msgs: []scanner.Message{
				msg(0, "A;1.0", "", true),
				msg(1, "B;2.5", "", true),
			},
			want: []string{"A;1.0", "B;2.5"},
		},
		{
			// "A;1" | "2.0" | "5\nB;2\n": middle span has no separator.
			name: "span_inside_one_line",
			msgs: []scanner.Message{
				msg(0, "A;1", "", false),
				msg(2, "5", "", true),
				msg(1, "2.0", "", false),
			},
			want: []string{"A;12.05"},
		},
		{
			// "A;1\n" | "\nB;2": an empty line right at the edge is kept,
			// the unterminated final line is emitted.
			name: "empty_line_and_unterminated_tail",
			msgs: []scanner.Message{
				msg(0, "A;1", "", true),
				msg(1, "", "B;2", true),
			},
			want: []string{"A;1", "", "B;2"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			r := New(64)
			for _, m := range c.msgs {
				if err := r.Send(m); err != nil {
					t.Fatalf("Send: %v", err)
				}
			}
			lines, err := r.Finish()
			if err != nil {
				t.Fatalf("Finish: %v", err)
			}
			got := asStrings(lines)
			if len(got) != len(c.want) {
				t.Fatalf("lines = %q, want %q", got, c.want)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Fatalf("line[%d] = %q, want %q", i, got[i], c.want[i])
				}
			}
		})
	}
}

func TestFinish_MissingSpan(t *testing.T) {
	t.Parallel()

	r := New(64)
	_ = r.Send(msg(0, "a", "b", true))
	_ = r.Send(msg(2, "c", "", true))
	if _, err := r.Finish(); !errors.Is(err, ErrMissingSpan) {
		t.Fatalf("Finish err = %v, want ErrMissingSpan", err)
	}
}

func TestFinish_FusedLineTooLong(t *testing.T) {
	t.Parallel()

	r := New(8)
	_ = r.Send(msg(0, "x", "abcdef", true))
	_ = r.Send(msg(1, "ghij", "", true))

	_, err := r.Finish()
	if !errors.Is(err, scanner.ErrLineTooLong) {
		t.Fatalf("Finish err = %v, want ErrLineTooLong", err)
	}
	var lerr *scanner.LineTooLongError
	if !errors.As(err, &lerr) || lerr.Span != 1 || lerr.Len != 10 {
		t.Fatalf("error = %#v, want span 1 len 10", lerr)
	}
}

func TestSendAfterFinish(t *testing.T) {
	t.Parallel()

	r := New(0)
	if _, err := r.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := r.Send(msg(0, "a", "", true)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Finish = %v, want ErrClosed", err)
	}
	if _, err := r.Finish(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second Finish = %v, want ErrClosed", err)
	}
}

func TestConcurrentSenders(t *testing.T) {
	t.Parallel()

	const spans = 2000
	r := New(64)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for k := w; k < spans; k += 8 {
				// Each edge fuses to "k;<k+1>".
				head := fmt.Sprintf("%d", k)
				if k == 0 {
					head = "start"
				}
				if err := r.Send(msg(uint64(k), head, fmt.Sprintf("%d;", k), true)); err != nil {
					t.Errorf("Send: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	lines, err := r.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if r.Spans() != spans {
		t.Fatalf("Spans() = %d, want %d", r.Spans(), spans)
	}
	// One line per span head, plus the final tail.
	if len(lines) != spans+1 {
		t.Fatalf("lines = %d, want %d", len(lines), spans+1)
	}
	if string(lines[0]) != "start" {
		t.Fatalf("first line = %q", lines[0])
	}
	for k := 1; k < spans; k++ {
		want := fmt.Sprintf("%d;%d", k-1, k)
		if string(lines[k]) != want {
			t.Fatalf("line[%d] = %q, want %q", k, lines[k], want)
		}
	}
}
