package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Column is one physical column as reported by the engine's catalog.
type Column struct {
	Name       string     `yaml:"name"`
	Type       ColumnType `yaml:"type"`
	PrimaryKey bool       `yaml:"primary_key,omitempty"`
}

// Table is a snapshot of a physical table's schema. Columns are in the
// engine's column order, which is also the order of SELECT * results.
type Table struct {
	Name    string   `yaml:"table"`
	Columns []Column `yaml:"columns"`
}

// Column looks a column up by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Missing returns the given columns that the table does not have.
func (t Table) Missing(columns []string) []string {
	var out []string
	for _, c := range columns {
		if _, ok := t.Column(c); !ok {
			out = append(out, c)
		}
	}
	return out
}

func (c Column) ddl() string {
	s := quoteIdent(c.Name) + " " + c.Type.DDL()
	if c.PrimaryKey {
		s += " PRIMARY KEY NOT NULL"
	}
	return s
}

// CreateSQL is the CREATE TABLE statement for the table.
func (t Table) CreateSQL() string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c.ddl()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s);", quoteIdent(t.Name), strings.Join(defs, ", "))
}

func addColumnSQL(table string, c Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", quoteIdent(table), c.ddl())
}

func dropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdent(table))
}

// ParseColumnType maps a declared column type onto a ColumnType using
// SQLite's affinity rules.
func ParseColumnType(decl string) ColumnType {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "INT"):
		return TypeInteger
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return TypeText
	case d == "", strings.Contains(d, "BLOB"):
		return TypeBlob
	default:
		return TypeReal
	}
}

// readTable reads a table's schema from the catalog. It is never cached.
func readTable(ctx context.Context, q querier, name string) (Table, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s);", quoteIdent(name))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return Table{}, classify(err, query)
	}
	defer rows.Close()

	t := Table{Name: name}
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, decl    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &decl, &notNull, &dflt, &pk); err != nil {
			return Table{}, errors.Wrapf(err, "scanning schema of %s", name)
		}
		t.Columns = append(t.Columns, Column{Name: colName, Type: ParseColumnType(decl), PrimaryKey: pk > 0})
	}
	if err := rows.Err(); err != nil {
		return Table{}, errors.Wrapf(err, "reading schema of %s", name)
	}
	if len(t.Columns) == 0 {
		return Table{}, &PrepareError{Kind: ErrNoSuchTable, Name: name, Query: query}
	}
	return t, nil
}

func listTables(ctx context.Context, q querier) ([]string, error) {
	const query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name;"
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, query)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errors.Wrap(err, "scanning table name")
		}
		names = append(names, n)
	}
	return names, errors.Wrap(rows.Err(), "listing tables")
}
