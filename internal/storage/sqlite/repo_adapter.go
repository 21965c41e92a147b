package sqlite

import (
	"context"
	"fmt"

	"rowscan/internal/storage"
)

// Kind is the storage kind this package registers.
const Kind = "sqlite"

// Dialect renders the aggregate table for SQLite.
var Dialect = storage.Dialect{Text: "TEXT", Integer: "INTEGER", Float: "REAL", Quote: storage.QuoteDouble}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds the Close method storage.Repository needs.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL(Kind, func(ctx context.Context, repo storage.Repository, table string) error {
		stmt, err := storage.BuildCreateTableSQL(storage.AggregateTable(table, Dialect), Dialect.Quote)
		if err != nil {
			return fmt.Errorf("sqlite ddl: %w", err)
		}
		return repo.Exec(ctx, stmt)
	})
}
