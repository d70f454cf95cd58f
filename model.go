package rowstore

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Model is a record type persisted as one row of its own table.
//
// Fields are discovered from the exported struct fields. The struct tag
// `rowstore:"name"` overrides the column name, `rowstore:"-"` skips a field,
// and the option `rowstore:"name,pk"` marks the primary key. Without an
// explicit `pk` option, the field stored in the column "id" is the key.
//
// TableName is declared explicitly rather than derived from the Go type name,
// so that renaming or moving a type does not silently move its data.
type Model interface {
	TableName() string
}

// field describes one persisted struct field.
type field struct {
	name     string // Go field name.
	column   string
	index    []int
	typ      reflect.Type
	colType  ColumnType
	scalar   bool
	optional bool
}

// descriptor is the reflected layout of a Model type.
type descriptor struct {
	typ    reflect.Type
	table  string
	fields []field
	pk     int // Index into fields.
}

func (d *descriptor) field(column string) (field, bool) {
	for _, f := range d.fields {
		if f.column == column {
			return f, true
		}
	}
	return field{}, false
}

func (d *descriptor) primaryKey() field { return d.fields[d.pk] }

// describe reflects over a Model type. It is cheap enough to be called per
// operation, which keeps the package free of shared caches.
func describe(typ reflect.Type) (*descriptor, error) {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, errors.Errorf("record type must be a struct, but got %s", typ.Kind())
	}
	m, ok := reflect.New(typ).Interface().(Model)
	if !ok {
		return nil, errors.Errorf("type %s does not implement rowstore.Model", typ)
	}
	table := m.TableName()
	if strings.TrimSpace(strings.Trim(table, `"`)) == "" {
		return nil, errors.Errorf("type %s has an empty table name", typ)
	}

	d := &descriptor{typ: typ, table: table, pk: -1}
	seen := make(map[string]struct{})
	explicitPK := false

	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("rowstore")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}
		if _, dup := seen[name]; dup {
			return nil, errors.Errorf("type %s maps column %q more than once", typ, name)
		}
		seen[name] = struct{}{}

		ct, scalar := scalarType(sf.Type)
		f := field{
			name:     sf.Name,
			column:   name,
			index:    sf.Index,
			typ:      sf.Type,
			colType:  ct,
			scalar:   scalar,
			optional: sf.Type.Kind() == reflect.Pointer,
		}
		if hasOption(opts, "pk") {
			if explicitPK {
				return nil, errors.Errorf("type %s declares more than one primary key", typ)
			}
			explicitPK = true
			d.pk = len(d.fields)
		} else if !explicitPK && name == "id" {
			d.pk = len(d.fields)
		}
		d.fields = append(d.fields, f)
	}

	if d.pk < 0 {
		return nil, errors.WithMessagef(ErrNoPrimaryKey, "type %s", typ)
	}
	if pk := d.fields[d.pk]; !pk.scalar || pk.optional {
		return nil, errors.Errorf("primary key %s of %s must be a non-pointer scalar", pk.name, typ)
	}
	return d, nil
}

func describeModel[T Model]() (*descriptor, error) {
	return describe(reflect.TypeFor[T]())
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if strings.TrimSpace(opt) == want {
			return true
		}
	}
	return false
}
