package storage

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"rowscan/internal/tree"
)

func TestExportTree(t *testing.T) {
	t.Parallel()

	tr := tree.New()
	for i := 0; i < 25; i++ {
		tr.Update([]byte(fmt.Sprintf("k%02d", i%10)), float64(i))
	}

	repo := &fakeRepo{}
	n, err := ExportTree(context.Background(), repo, tr, 4)
	if err != nil {
		t.Fatalf("ExportTree: %v", err)
	}
	if n != 10 || len(repo.rows) != 10 {
		t.Fatalf("exported %d (%d rows), want 10", n, len(repo.rows))
	}
	if !slices.Equal(repo.columns, AggregateColumns) {
		t.Fatalf("columns = %v", repo.columns)
	}
	if repo.calls != 3 {
		t.Fatalf("CopyFrom calls = %d, want 3 (4+4+2)", repo.calls)
	}

	// k00 saw 0, 10, 20.
	first := repo.rows[0]
	want := []any{"k00", int64(3), 30.0, 0.0, 20.0, 10.0}
	if !slices.Equal(first, want) {
		t.Fatalf("first row = %v, want %v", first, want)
	}
	for i := 1; i < len(repo.rows); i++ {
		if repo.rows[i-1][0].(string) >= repo.rows[i][0].(string) {
			t.Fatalf("rows not in key order at %d", i)
		}
	}
}

func TestExportTree_CopyError(t *testing.T) {
	t.Parallel()

	tr := tree.New()
	for i := 0; i < 100; i++ {
		tr.Update([]byte(fmt.Sprintf("k%03d", i)), 1)
	}
	repo := &fakeRepo{failAt: 2}
	if _, err := ExportTree(context.Background(), repo, tr, 10); err == nil {
		t.Fatalf("expected copy error")
	}
}

func TestExportTree_Empty(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	n, err := ExportTree(context.Background(), repo, tree.New(), 0)
	if err != nil || n != 0 || repo.calls != 0 {
		t.Fatalf("n=%d calls=%d err=%v", n, repo.calls, err)
	}
}
