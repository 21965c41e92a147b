package storage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
)

// fakeRepo records everything written to it.
type fakeRepo struct {
	mu      sync.Mutex
	columns []string
	rows    [][]any
	execs   []string
	failAt  int // CopyFrom call (1-based) that fails; 0 never fails
	calls   int
	closed  bool
}

func (f *fakeRepo) CopyFrom(_ context.Context, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return 0, errors.New("copy failed")
	}
	f.columns = columns
	for _, r := range rows {
		f.rows = append(f.rows, slices.Clone(r))
	}
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(_ context.Context, sql string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeRepo) Close() { f.closed = true }

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	var got Config
	Register("fake", func(_ context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{}, nil
	})

	cfg := Config{Kind: "fake", DSN: "mem", Table: "agg"}
	repo, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil || got != cfg {
		t.Fatalf("factory got %+v, want %+v", got, cfg)
	}
	if !slices.Contains(ListKinds(), "fake") {
		t.Fatalf("registered kind missing from ListKinds: %v", ListKinds())
	}
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil || !strings.Contains(err.Error(), `"does-not-exist"`) {
		t.Fatalf("err = %v, want unsupported kind error", err)
	}
}

func TestRegister_Override(t *testing.T) {
	t.Parallel()

	calls := 0
	Register("override", func(context.Context, Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register("override", func(context.Context, Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	if _, err := New(context.Background(), Config{Kind: "override"}); err != nil {
		t.Fatalf("New error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("factory call count = %d, want 10", calls)
	}
}

func TestRegister_FactoryError(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(context.Context, Config) (Repository, error) { return nil, want })

	if _, err := New(context.Background(), Config{Kind: "errkind"}); !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	RegisterDDL("fake-ddl", func(ctx context.Context, repo Repository, table string) error {
		return repo.Exec(ctx, "CREATE "+table)
	})

	repo := &fakeRepo{}
	if err := EnsureTable(context.Background(), "fake-ddl", repo, "agg"); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.execs) != 1 || repo.execs[0] != "CREATE agg" {
		t.Fatalf("execs = %v", repo.execs)
	}
	if err := EnsureTable(context.Background(), "no-such-kind", repo, "agg"); err == nil {
		t.Fatalf("expected error for unregistered kind")
	}
}
