package rowstore

import (
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Bindable is implemented by custom types that know how to store themselves.
type Bindable interface {
	BindingValue() Value
}

// Unbindable is implemented by pointers to custom types that know how to
// restore themselves from a column. Unbind is never called for NULL cells.
type Unbindable interface {
	Unbind(c Cell) error
}

// Cell reads one column of a result row. Getters coerce the stored value the
// way SQLite's sqlite3_column_* functions do.
type Cell interface {
	Int64() int64
	Float64() float64
	Text() string
	Blob() []byte
	IsNull() bool
}

// timeLayout is fixed-width so stored times compare lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	bindableType   = reflect.TypeOf((*Bindable)(nil)).Elem()
	unbindableType = reflect.TypeOf((*Unbindable)(nil)).Elem()
	timeType       = reflect.TypeOf(time.Time{})
	uuidType       = reflect.TypeOf(uuid.UUID{})
)

// ToValue converts a Go scalar into a Value. Nil pointers become Null.
func ToValue(x any) (Value, error) {
	return valueOf(reflect.ValueOf(x))
}

func valueOf(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null{}, nil
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Null{}, nil
		}
		if rv.Type().Implements(bindableType) {
			return rv.Interface().(Bindable).BindingValue(), nil
		}
		return valueOf(rv.Elem())
	}
	if rv.Type().Implements(bindableType) {
		return rv.Interface().(Bindable).BindingValue(), nil
	}

	switch rv.Type() {
	case timeType:
		return Text(rv.Interface().(time.Time).UTC().Format(timeLayout)), nil
	case uuidType:
		return Text(rv.Interface().(uuid.UUID).String()), nil
	}

	switch rv.Kind() {
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Bool:
		if rv.Bool() {
			return Integer(1), nil
		}
		return Integer(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Integer(int64(rv.Uint())), nil
	case reflect.Uint, reflect.Uint64:
		return Integer(encodeUint64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Real(rv.Float()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Blob(append([]byte{}, rv.Bytes()...)), nil
		}
	}
	return nil, errors.WithMessagef(ErrUnsupportedType, "%s", rv.Type())
}

// encodeUint64 keeps values that fit in int64 as they are. Larger values are
// shifted down by MaxInt64 and stored negated, so they land in the negative
// range: stored unnegated, MaxInt64+1 would read back as 1.
func encodeUint64(u uint64) int64 {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return -int64(u - math.MaxInt64)
}

func decodeUint64(n int64) uint64 {
	if n >= 0 {
		return uint64(n)
	}
	return uint64(-n) + math.MaxInt64
}

// scalarType reports the declared column type for a Go type, and whether the
// type is stored as a scalar at all. Non-scalar types are stored as JSON blobs.
func scalarType(t reflect.Type) (ColumnType, bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Implements(bindableType) || reflect.PointerTo(t).Implements(unbindableType) {
		if ct, ok := reflect.Zero(t).Interface().(interface{ ColumnType() ColumnType }); ok {
			return ct.ColumnType(), true
		}
		return TypeBlob, true
	}
	switch t {
	case timeType, uuidType:
		return TypeText, true
	}
	switch t.Kind() {
	case reflect.String:
		return TypeText, true
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger, true
	case reflect.Float32, reflect.Float64:
		return TypeReal, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBlob, true
		}
	}
	return TypeBlob, false
}

// FromValue decodes a cell into dst, which must be a non-nil pointer.
func FromValue(c Cell, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Errorf("destination must be a non-nil pointer, got %T", dst)
	}
	return fromCell(c, rv.Elem())
}

func fromCell(c Cell, dst reflect.Value) error {
	t := dst.Type()
	if t.Kind() == reflect.Pointer {
		if c.IsNull() {
			dst.Set(reflect.Zero(t))
			return nil
		}
		elem := reflect.New(t.Elem())
		if err := fromCell(c, elem.Elem()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}
	if c.IsNull() {
		return ErrUnexpectedNull
	}
	if dst.CanAddr() && dst.Addr().Type().Implements(unbindableType) {
		return dst.Addr().Interface().(Unbindable).Unbind(c)
	}

	switch t {
	case timeType:
		ts, err := time.Parse(time.RFC3339Nano, c.Text())
		if err != nil {
			return errors.Wrap(err, "parsing time")
		}
		dst.Set(reflect.ValueOf(ts.UTC()))
		return nil
	case uuidType:
		id, err := uuid.Parse(c.Text())
		if err != nil {
			return errors.Wrap(err, "parsing uuid")
		}
		dst.Set(reflect.ValueOf(id))
		return nil
	}

	switch t.Kind() {
	case reflect.String:
		dst.SetString(c.Text())
	case reflect.Bool:
		dst.SetBool(c.Int64() != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(c.Int64())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		dst.SetUint(uint64(c.Int64()))
	case reflect.Uint, reflect.Uint64:
		dst.SetUint(decodeUint64(c.Int64()))
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(c.Float64())
	case reflect.Slice:
		if t.Elem().Kind() != reflect.Uint8 {
			return errors.WithMessagef(ErrUnsupportedType, "%s", t)
		}
		dst.SetBytes(c.Blob())
	default:
		return errors.WithMessagef(ErrUnsupportedType, "%s", t)
	}
	return nil
}

// cell adapts a value scanned by database/sql.
type cell struct{ v any }

// ValueCell returns a Cell reading the given Value, as if it had been stored
// and read back from a column.
func ValueCell(v Value) Cell { return cell{v: arg(v)} }

func (c cell) IsNull() bool { return c.v == nil }

func (c cell) Int64() int64 {
	switch v := c.v.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	case time.Time:
		return v.Unix()
	}
	return 0
}

func (c cell) Float64() float64 {
	switch v := c.v.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	case time.Time:
		return float64(v.UnixNano()) / float64(time.Second)
	}
	return 0
}

func (c cell) Text() string {
	switch v := c.v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return v.UTC().Format(timeLayout)
	}
	return ""
}

func (c cell) Blob() []byte {
	switch v := c.v.(type) {
	case []byte:
		return append([]byte{}, v...)
	case nil:
		return nil
	}
	return []byte(c.Text())
}

// parseInt mirrors SQLite's text-to-integer coercion: a leading numeric
// prefix is used, anything else is 0.
func parseInt(s string) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
