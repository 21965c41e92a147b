package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"rowscan/internal/storage"
	"rowscan/internal/tree"
)

// TestRegistrationUsesNewRepositoryHook verifies that the "sqlite" backend
// registered in init() goes through the newRepository hook and that
// wrappedRepo delegates Close.
func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	var (
		gotCfg   Config
		closed   bool
		fakeRepo = &Repository{}
	)
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return fakeRepo, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: Kind, DSN: "x.db", Table: "agg"})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if gotCfg != (Config{DSN: "x.db", Table: "agg"}) {
		t.Fatalf("hook cfg = %+v", gotCfg)
	}
	w, ok := repo.(*wrappedRepo)
	if !ok || w.Repository != fakeRepo {
		t.Fatalf("storage.New() = %T, want *wrappedRepo around the hook's repo", repo)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close() did not invoke closeFn")
	}
}

func TestExportIntoTempDatabase(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "agg.db")

	repo, err := storage.New(ctx, storage.Config{Kind: Kind, DSN: dsn, Table: "agg"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()

	if err := storage.EnsureTable(ctx, Kind, repo, "agg"); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Idempotent.
	if err := storage.EnsureTable(ctx, Kind, repo, "agg"); err != nil {
		t.Fatalf("EnsureTable (second): %v", err)
	}

	tr := tree.New()
	tr.Update([]byte("A"), 1.0)
	tr.Update([]byte("B"), 2.5)
	tr.Update([]byte("A"), 3.0)

	for round := 0; round < 2; round++ {
		n, err := storage.ExportTree(ctx, repo, tr, 1)
		if err != nil {
			t.Fatalf("ExportTree round %d: %v", round, err)
		}
		if n != 2 {
			t.Fatalf("ExportTree round %d wrote %d rows, want 2", round, n)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var rows int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agg`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 2 {
		t.Fatalf("table has %d rows after re-export, want 2", rows)
	}

	var (
		count         int64
		sum, min, max float64
		mean          float64
	)
	err = db.QueryRowContext(ctx, `SELECT "count", "sum", "min", "max", "mean" FROM agg WHERE "key" = ?`, "A").
		Scan(&count, &sum, &min, &max, &mean)
	if err != nil {
		t.Fatalf("select A: %v", err)
	}
	if count != 2 || sum != 4 || min != 1 || max != 3 || mean != 2 {
		t.Fatalf("A = count=%d sum=%v min=%v max=%v mean=%v", count, sum, min, max, mean)
	}
}

func TestNewRepository_Validation(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{Table: "agg"}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, _, err := NewRepository(context.Background(), Config{DSN: "x.db"}); err == nil {
		t.Fatalf("expected error for empty table")
	}
}
