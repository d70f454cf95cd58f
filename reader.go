package rowstore

import (
	"database/sql"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// Row is one result row. Cells are looked up by column name.
type Row struct {
	names []string
	cells []Cell
}

// NewRow pairs column names with their cells.
func NewRow(names []string, cells []Cell) Row {
	return Row{names: names, cells: cells}
}

// Cell returns the cell of the named column.
func (r Row) Cell(column string) (Cell, bool) {
	for i, n := range r.names {
		if n == column {
			return r.cells[i], true
		}
	}
	return nil, false
}

// Read decodes a record from a row. Every field is resolved by name in the
// live table; a field whose column the table lacks fails the whole record
// with a *ColumnError.
func Read[T Model](row Row, table Table) (T, error) {
	var out T
	d, err := describeModel[T]()
	if err != nil {
		return out, err
	}
	err = readFields(d, row, table, reflect.ValueOf(&out).Elem())
	return out, err
}

func readFields(d *descriptor, row Row, table Table, rv reflect.Value) error {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}
	cells := make([]Cell, len(d.fields))
	for i, f := range d.fields {
		if _, ok := table.Column(f.column); !ok {
			return &ColumnError{Column: f.column}
		}
		c, ok := row.Cell(f.column)
		if !ok {
			return &ColumnError{Column: f.column}
		}
		cells[i] = c
	}
	for i, f := range d.fields {
		if err := decodeField(f, cells[i], rv.FieldByIndex(f.index)); err != nil {
			return errors.WithMessagef(err, "reading column %s of %s", f.column, d.table)
		}
	}
	return nil
}

func decodeField(f field, c Cell, fv reflect.Value) error {
	if f.scalar {
		return fromCell(c, fv)
	}
	if c.IsNull() {
		switch f.typ.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			fv.Set(reflect.Zero(f.typ))
			return nil
		}
		return ErrUnexpectedNull
	}
	return errors.Wrap(json.Unmarshal(c.Blob(), fv.Addr().Interface()), "decoding nested value")
}

// scanRows reads every remaining row of a result set into memory and closes
// it.
func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "reading result columns")
	}
	var out []Row
	for rows.Next() {
		row, err := scanRow(rows, names)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, errors.Wrap(rows.Err(), "iterating rows")
}

// scanRow reads the current row of a result set.
func scanRow(rows *sql.Rows, names []string) (Row, error) {
	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Row{}, errors.Wrap(err, "scanning row")
	}
	cells := make([]Cell, len(raw))
	for i, v := range raw {
		cells[i] = cell{v: v}
	}
	return NewRow(names, cells), nil
}
