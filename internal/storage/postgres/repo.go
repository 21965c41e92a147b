// Package postgres implements a Postgres repository using pgx v5. Each batch
// is COPYed into a transaction-scoped staging table and then upserted into
// the target table on its key columns.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN        string   // connection string for pgxpool
	Table      string   // target table, e.g. "public.rowscan_agg"
	KeyColumns []string // conflict target columns
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("postgres: table must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// CopyFrom stages rows with COPY and upserts them into the target table in
// one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tmp := stagingName(r.cfg.Table)
	if _, err := tx.Exec(ctx, createStagingSQL(tmp, r.cfg.Table)); err != nil {
		return 0, fmt.Errorf("create staging: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("copy into staging: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("copy into staging: %w", err)
	}

	if _, err := tx.Exec(ctx, upsertSQL(r.cfg.Table, tmp, columns, r.cfg.KeyColumns)); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Exec runs a single statement (typically DDL). Blank statements are no-ops.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

func stagingName(table string) string {
	return "tmp_" + strings.ReplaceAll(table, ".", "_")
}

func createStagingSQL(tmp, table string) string {
	return fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgIdent(tmp), pgFQN(table),
	)
}

// upsertSQL moves staged rows into table, replacing non-key columns of rows
// whose keys already exist. Without key columns it is a plain insert.
func upsertSQL(table, tmp string, columns, keys []string) string {
	cols := strings.Join(mapIdent(columns), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		pgFQN(table), cols, cols, pgIdent(tmp))
	if len(keys) == 0 {
		return stmt
	}
	set := filterConflictKeys(updateColumns(columns), keys)
	if len(set) == 0 {
		return stmt + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(mapIdent(keys), ", "))
	}
	return stmt + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(mapIdent(keys), ", "), strings.Join(set, ", "))
}

// updateColumns renders `"col" = EXCLUDED."col"` for each column.
func updateColumns(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(c), pgIdent(c)))
	}
	return out
}

// filterConflictKeys drops assignments to conflict key columns.
func filterConflictKeys(setParts []string, keys []string) []string {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[pgIdent(k)] = struct{}{}
	}
	var out []string
	for _, part := range setParts {
		col, _, _ := strings.Cut(part, " = ")
		if _, isKey := keySet[col]; !isKey {
			out = append(out, part)
		}
	}
	return out
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.agg" to
// "public"."agg".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
