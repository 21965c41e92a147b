package main

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"rowscan/internal/config"
	"rowscan/internal/datasource/file"
	"rowscan/internal/metrics"
	"rowscan/internal/rowparse"
	"rowscan/internal/scan"
	"rowscan/internal/storage"
	"rowscan/internal/tree"
)

// dropSamples is how many rejected rows are kept verbatim for the summary.
const dropSamples = 10

// counters holds run-wide totals. Scanners count into per-worker slots and
// the slots are folded in here once the scan is over.
type counters struct {
	scanned   atomic.Int64 // lines yielded inside spans
	recovered atomic.Int64 // lines rebuilt from span boundaries
	parsed    atomic.Int64 // rows aggregated
	dropped   atomic.Int64 // rows rejected by the parser
	exported  atomic.Int64 // rows written by the export
	spans     atomic.Int64
}

// workerSlot is one scanner's private tally, padded to its own cache line.
type workerSlot struct {
	parsed, dropped int64
	_               [48]byte
}

// runResult is what a successful run reports to main.
type runResult struct {
	lines int64
	size  int64
	agg   *tree.Tree // nil in count mode
	depth int        // agg's tree depth
	c     *counters
	drops *errAgg
}

// runScan executes one configured scan: open, scan (+aggregate), optional
// export. Nothing is reported on error.
func runScan(ctx context.Context, cfg config.Run) (*runResult, error) {
	job := cfg.Job

	step := time.Now()
	src, err := file.NewSource(cfg.Source.Kind, cfg.Source.Path)
	if err != nil {
		return nil, err
	}
	f, err := src.Open(ctx)
	metrics.RecordStep(job, "open", err, time.Since(step))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res := &runResult{size: f.Size(), c: &counters{}, drops: newErrAgg(dropSamples)}
	opts := scan.Options{
		Workers:    cfg.Scan.Workers,
		SpanSize:   cfg.Scan.SpanSize,
		MaxLineLen: cfg.Scan.MaxLineLen,
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	var (
		fn    scan.LineFunc
		agg   *tree.Sharded
		slots []workerSlot
	)
	if cfg.Mode == config.ModeAggregate {
		agg = tree.NewSharded(0)
		// Last slot belongs to scan.Recovered.
		slots = make([]workerSlot, opts.Workers+1)
		fn = func(worker int, line []byte) error {
			slot := &slots[len(slots)-1]
			if worker != scan.Recovered {
				slot = &slots[worker]
			}
			key, v, err := rowparse.Parse(line, cfg.Scan.MaxKeyLen)
			if err != nil {
				slot.dropped++
				res.drops.addf(func() string { return fmt.Sprintf("%v: %q", err, line) })
				return nil
			}
			slot.parsed++
			agg.Update(key, v)
			return nil
		}
	}

	step = time.Now()
	sr, err := scan.Run(ctx, f, f.Size(), opts, fn)
	metrics.RecordStep(job, "scan", err, time.Since(step))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cfg.Source.Path, err)
	}
	res.lines = sr.Lines()
	res.c.scanned.Store(sr.Scanned)
	res.c.recovered.Store(sr.Recovered)
	res.c.spans.Store(sr.Spans)
	for i := range slots {
		res.c.parsed.Add(slots[i].parsed)
		res.c.dropped.Add(slots[i].dropped)
	}

	if agg != nil {
		res.agg = agg.Tree()
		res.depth = res.agg.Depth()
		metrics.RecordKeys(job, res.agg.Len())
		if cfg.Export.Enabled() {
			step = time.Now()
			n, err := exportTree(ctx, cfg.Export, res.agg)
			metrics.RecordStep(job, "export", err, time.Since(step))
			res.c.exported.Store(n)
			if err != nil {
				return nil, err
			}
		}
	}

	recordRowMetrics(job, res.c)
	return res, nil
}

func exportTree(ctx context.Context, e config.Export, t *tree.Tree) (int64, error) {
	repo, err := storage.New(ctx, storage.Config{Kind: e.Kind, DSN: e.DSN, Table: e.Table})
	if err != nil {
		return 0, fmt.Errorf("export: open %s: %w", e.Kind, err)
	}
	defer repo.Close()

	if err := storage.EnsureTable(ctx, e.Kind, repo, e.Table); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	n, err := storage.ExportTree(ctx, repo, t, e.BatchSize)
	if err != nil {
		return n, fmt.Errorf("export: %w", err)
	}
	log.Printf("export: kind=%s table=%s rows=%d", e.Kind, e.Table, n)
	return n, nil
}

func recordRowMetrics(job string, c *counters) {
	metrics.RecordRow(job, "scanned", c.scanned.Load())
	metrics.RecordRow(job, "recovered", c.recovered.Load())
	metrics.RecordRow(job, "parsed", c.parsed.Load())
	metrics.RecordRow(job, "dropped", c.dropped.Load())
	metrics.RecordRow(job, "exported", c.exported.Load())
	metrics.RecordSpans(job, c.spans.Load())
}

// logSummary prints the run totals. Every line is either scanned or
// recovered, and in aggregate mode either parsed or dropped.
func logSummary(res *runResult, elapsed time.Duration, verbose bool) {
	c := res.c
	keys := 0
	if res.agg != nil {
		keys = res.agg.Len()
	}
	log.Printf(
		"summary: lines=%s scanned=%s recovered=%s parsed=%s dropped=%s keys=%s spans=%s exported=%s bytes=%s elapsed=%s",
		humanize.Comma(res.lines),
		humanize.Comma(c.scanned.Load()),
		humanize.Comma(c.recovered.Load()),
		humanize.Comma(c.parsed.Load()),
		humanize.Comma(c.dropped.Load()),
		humanize.Comma(int64(keys)),
		humanize.Comma(c.spans.Load()),
		humanize.Comma(c.exported.Load()),
		humanize.Bytes(uint64(res.size)),
		elapsed.Truncate(time.Millisecond),
	)
	if res.agg != nil {
		if verbose {
			// Sorted input degrades the tree to a list; depth shows it.
			log.Printf("summary: keys=%s depth=%s", humanize.Comma(int64(keys)), humanize.Comma(int64(res.depth)))
		}
		if got := c.parsed.Load() + c.dropped.Load(); got != res.lines {
			log.Printf("summary: WARNING parsed+dropped=%d != lines=%d", got, res.lines)
		}
	}

	d := res.drops
	if d.count > 0 {
		log.Printf("dropped rows: %d (showing first %d)", d.count, len(d.first))
		for i, s := range d.first {
			log.Printf("  #%03d: %s", i+1, s)
		}
	}
}

// errAgg keeps the first few messages of a repeated failure plus a total.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.addf(func() string { return msg })
}

// addf counts one failure and only builds its message while samples are
// still being kept.
func (a *errAgg) addf(msg func() string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg())
	}
	a.count++
	a.mu.Unlock()
}
