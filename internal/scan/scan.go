// Package scan runs a pool of scanners over one source and reconciles the
// lines cut at span boundaries.
//
// Concurrency model:
//
//	cursor (one shared offset + span labels, claimed atomically)
//	     → N scanners (errgroup)      → fn(worker, line) for in-span lines
//	     → 1 reconciler collector     ← boundary fragments per span
//	     → fn(-1, line) for each recovered line, after all scanners are done
//
// The first scanner error cancels the remaining scanners and is returned;
// no partial Result is reported on error.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"rowscan/internal/boundary"
	"rowscan/internal/cursor"
	"rowscan/internal/scanner"
)

// Recovered is the worker id passed to LineFunc for lines rebuilt from
// boundary fragments.
const Recovered = -1

// LineFunc consumes one line. worker is the scanner's index, or Recovered.
// The line slice is only valid during the call. Calls with the same worker id
// never overlap; calls with different ids may run concurrently.
type LineFunc func(worker int, line []byte) error

// Options controls the scan.
type Options struct {
	Workers    int
	SpanSize   int
	MaxLineLen int
	// Verbose enables per-worker log lines.
	Verbose bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.SpanSize <= 0 {
		o.SpanSize = scanner.DefaultSpanSize
	}
	if o.MaxLineLen <= 0 {
		o.MaxLineLen = scanner.DefaultMaxLineLen
	}
	return o
}

// Result summarizes a completed scan.
type Result struct {
	Scanned   int64 // lines yielded inside spans
	Recovered int64 // lines rebuilt from boundary fragments
	Spans     int64 // spans claimed
	Workers   int
}

// Lines returns the total number of lines in the source.
func (r Result) Lines() int64 { return r.Scanned + r.Recovered }

// Run scans size bytes of r with opts.Workers concurrent scanners and hands
// every line to fn exactly once.
func Run(ctx context.Context, r io.ReaderAt, size int64, opts Options, fn LineFunc) (Result, error) {
	opts = opts.withDefaults()
	if fn == nil {
		fn = func(int, []byte) error { return nil }
	}

	// Small sources do not need more scanners than spans.
	workers := opts.Workers
	if spans := (size + int64(opts.SpanSize) - 1) / int64(opts.SpanSize); spans < int64(workers) {
		workers = max(1, int(spans))
	}

	cur := cursor.New(r, size)
	rec := boundary.New(opts.MaxLineLen)

	var scanned, spans atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			s := scanner.New(cur, rec, scanner.Options{SpanSize: opts.SpanSize, MaxLineLen: opts.MaxLineLen})
			defer func() {
				scanned.Add(s.Lines())
				spans.Add(s.Spans())
				if opts.Verbose {
					log.Printf("scan: worker=%d spans=%d lines=%d", w, s.Spans(), s.Lines())
				}
			}()

			claimed := s.Spans()
			for {
				line, err := s.ReadLine()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				if err := fn(w, line); err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				// Check for cancellation once per span, not per line.
				if n := s.Spans(); n != claimed {
					claimed = n
					if err := gctx.Err(); err != nil {
						return err
					}
				}
			}
		})
	}

	werr := g.Wait()
	lines, ferr := rec.Finish()
	if werr != nil {
		return Result{}, werr
	}
	if ferr != nil {
		return Result{}, fmt.Errorf("reconcile: %w", ferr)
	}

	for _, line := range lines {
		if err := fn(Recovered, line); err != nil {
			return Result{}, fmt.Errorf("recovered line: %w", err)
		}
	}

	res := Result{
		Scanned:   scanned.Load(),
		Recovered: int64(len(lines)),
		Spans:     spans.Load(),
		Workers:   workers,
	}
	if opts.Verbose {
		log.Printf("reconcile: spans=%d recovered=%d", rec.Spans(), res.Recovered)
	}
	return res, nil
}
