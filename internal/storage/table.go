package storage

import (
	"fmt"
	"strings"
)

// AggregateColumns is the column order ExportTree writes.
var AggregateColumns = []string{"key", "count", "sum", "min", "max", "mean"}

// ColumnDef describes one column of a CREATE TABLE statement.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef is a backend-agnostic table model. Dialects supply the SQL types
// and identifier quoting.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect carries what differs between backends when rendering DDL.
type Dialect struct {
	Text, Integer, Float string
	Quote                func(ident string) string
}

// AggregateTable returns the table definition for exported aggregates.
func AggregateTable(fqn string, d Dialect) TableDef {
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: "key", SQLType: d.Text, PrimaryKey: true},
			{Name: "count", SQLType: d.Integer},
			{Name: "sum", SQLType: d.Float},
			{Name: "min", SQLType: d.Float},
			{Name: "max", SQLType: d.Float},
			{Name: "mean", SQLType: d.Float},
		},
	}
}

// BuildCreateTableSQL renders
//
//	CREATE TABLE IF NOT EXISTS <fqn> (
//	  <col> <type> [NOT NULL],
//	  ...,
//	  PRIMARY KEY (<pk-cols>)
//	);
//
// quoting every identifier with quote. Each dot-separated segment of the FQN
// is quoted on its own.
func BuildCreateTableSQL(t TableDef, quote func(string) string) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	if quote == nil {
		quote = func(s string) string { return s }
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		def := quote(name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, "PRIMARY KEY ("+strings.Join(pks, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		QuoteFQN(fqn, quote), strings.Join(cols, ",\n  ")), nil
}

// QuoteFQN quotes each dot-separated segment of a possibly schema-qualified
// name, dropping empty segments.
func QuoteFQN(fqn string, quote func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, quote(p))
		}
	}
	return strings.Join(out, ".")
}

// QuoteDouble quotes an identifier with ANSI double quotes, which both
// SQLite and Postgres accept.
func QuoteDouble(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
