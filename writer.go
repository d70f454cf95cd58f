package rowstore

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// Pair is one column of a record being written.
type Pair struct {
	Column string
	Value  Value
	// Type is the declared type of the Go field, used when the column has to
	// be created. It matters for NULL values, which carry no type of their own.
	Type ColumnType
}

// Write walks the fields of a record in declaration order. Fields that are
// not scalars are stored as JSON in a Blob.
func Write(record Model) ([]Pair, error) {
	d, err := describe(reflect.TypeOf(record))
	if err != nil {
		return nil, err
	}
	return writeFields(d, reflect.ValueOf(record))
}

func writeFields(d *descriptor, rv reflect.Value) ([]Pair, error) {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errors.Errorf("cannot write nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	pairs := make([]Pair, 0, len(d.fields))
	for _, f := range d.fields {
		v, err := encodeField(f, rv.FieldByIndex(f.index))
		if err != nil {
			return nil, errors.WithMessagef(err, "writing column %s of %s", f.column, d.table)
		}
		pairs = append(pairs, Pair{Column: f.column, Value: v, Type: f.colType})
	}
	return pairs, nil
}

func encodeField(f field, fv reflect.Value) (Value, error) {
	if f.scalar {
		return valueOf(fv)
	}
	if fv.Kind() == reflect.Pointer && fv.IsNil() {
		return Null{}, nil
	}
	b, err := json.Marshal(fv.Interface())
	if err != nil {
		return nil, errors.Wrap(err, "encoding nested value")
	}
	return Blob(b), nil
}

// DefineTable derives the full definition of a table that does not exist yet
// from the pairs of a record about to be written into it.
func DefineTable(name string, pairs []Pair, primaryKey string) Table {
	t := Table{Name: name, Columns: make([]Column, len(pairs))}
	for i, p := range pairs {
		t.Columns[i] = Column{Name: p.Column, Type: p.Type, PrimaryKey: p.Column == primaryKey}
	}
	return t
}

// NewColumns returns the columns of pairs that table does not have yet, in
// pair order.
func NewColumns(pairs []Pair, table Table) []Column {
	var out []Column
	for _, p := range pairs {
		if _, ok := table.Column(p.Column); !ok {
			out = append(out, Column{Name: p.Column, Type: p.Type})
		}
	}
	return out
}
