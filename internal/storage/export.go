package storage

import (
	"context"

	"golang.org/x/sync/errgroup"

	"rowscan/internal/tree"
)

// DefaultBatchSize is used by ExportTree when batchSize <= 0.
const DefaultBatchSize = 1000

// ExportTree writes one row per key of t, in key order, through
// repo.CopyFrom. Rows follow AggregateColumns. The caller must not mutate t
// until ExportTree returns.
func ExportTree(ctx context.Context, repo Repository, t *tree.Tree, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, batchSize)

	g.Go(func() error {
		defer close(rows)
		var err error
		t.Walk(func(k []byte, s tree.Stats) bool {
			select {
			case rows <- []any{string(k), s.Count, s.Sum, s.Min, s.Max, s.Mean()}:
				return true
			case <-gctx.Done():
				err = gctx.Err()
				return false
			}
		})
		return err
	})

	var total int64
	g.Go(func() error {
		n, err := LoadBatches(gctx, AggregateColumns, rows, batchSize, repo.CopyFrom)
		total = n
		return err
	})

	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}
