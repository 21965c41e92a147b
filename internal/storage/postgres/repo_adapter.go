// This adapter wires the Postgres backend into the storage factory by
// registering a constructor and a DDL bootstrapper at init time, so callers
// can obtain a Repository via storage.New without importing this package.
package postgres

import (
	"context"
	"fmt"

	"rowscan/internal/storage"
)

// Kind is the storage kind this package registers.
const Kind = "postgres"

// Dialect renders the aggregate table for Postgres.
var Dialect = storage.Dialect{Text: "TEXT", Integer: "BIGINT", Float: "DOUBLE PRECISION", Quote: pgIdent}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:        cfg.DSN,
			Table:      cfg.Table,
			KeyColumns: storage.AggregateColumns[:1],
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL(Kind, func(ctx context.Context, repo storage.Repository, table string) error {
		stmt, err := storage.BuildCreateTableSQL(storage.AggregateTable(table, Dialect), Dialect.Quote)
		if err != nil {
			return fmt.Errorf("postgres ddl: %w", err)
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
		return nil
	})
}
