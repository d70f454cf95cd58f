package rowstore

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Value is a single storable SQLite scalar.
// It's a "closed" interface, meaning only types within this package implement it.
type Value interface {
	isValue()
}

// Text is a TEXT value.
type Text string

// Integer is an INTEGER value.
type Integer int64

// Real is a FLOAT value.
type Real float64

// Blob is a BLOB value.
type Blob []byte

// Null is the SQL NULL value.
type Null struct{}

func (Text) isValue()    {}
func (Integer) isValue() {}
func (Real) isValue()    {}
func (Blob) isValue()    {}
func (Null) isValue()    {}

// ColumnType is the declared type of a physical column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
	TypeBlob
)

// DDL returns the type name used in CREATE TABLE and ALTER TABLE statements.
func (t ColumnType) DDL() string {
	switch t {
	case TypeText:
		return "TEXT"
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "FLOAT"
	default:
		return "BLOB"
	}
}

func (t ColumnType) String() string { return t.DDL() }

// MarshalYAML renders the type by name.
func (t ColumnType) MarshalYAML() (any, error) { return t.DDL(), nil }

// TypeOf returns the natural column type of a value. NULL carries no type
// information and defaults to INTEGER.
func TypeOf(v Value) ColumnType {
	switch v.(type) {
	case Text:
		return TypeText
	case Real:
		return TypeReal
	case Blob:
		return TypeBlob
	default:
		return TypeInteger
	}
}

// FormatValue renders a value for human-readable descriptions. It is never
// used to build executable SQL.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case Text:
		return "'" + string(v) + "'"
	case Integer:
		return strconv.FormatInt(int64(v), 10)
	case Real:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case Blob:
		return fmt.Sprintf("[blob:%d-bytes]", len(v))
	case Null:
		return "NULL"
	default:
		panic(fmt.Sprintf("rowstore: unknown value %T", v))
	}
}

// arg converts a value into a database/sql argument.
func arg(v Value) any {
	switch v := v.(type) {
	case Text:
		return string(v)
	case Integer:
		return int64(v)
	case Real:
		return float64(v)
	case Blob:
		if v == nil {
			return []byte{}
		}
		return []byte(v)
	case Null:
		return nil
	default:
		panic(fmt.Sprintf("rowstore: cannot bind value %T", v))
	}
}

func args(vs []Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = arg(v)
	}
	return out
}

// jsonValue is the persisted form of a Value: {"type": "...", "value": ...}.
type jsonValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func marshalValue(v Value) ([]byte, error) {
	var jv jsonValue
	var raw any
	switch v := v.(type) {
	case Text:
		jv.Type, raw = "text", string(v)
	case Integer:
		jv.Type, raw = "integer", int64(v)
	case Real:
		jv.Type, raw = "double", float64(v)
	case Blob:
		jv.Type, raw = "blob", []byte(v)
	case Null:
		jv.Type = "null"
	default:
		return nil, errors.Errorf("unknown value %T", v)
	}
	if raw != nil {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		jv.Value = b
	}
	return json.Marshal(jv)
}

func unmarshalValue(data []byte) (Value, error) {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return nil, err
	}
	switch jv.Type {
	case "text":
		var s string
		err := json.Unmarshal(jv.Value, &s)
		return Text(s), err
	case "integer":
		var n int64
		err := json.Unmarshal(jv.Value, &n)
		return Integer(n), err
	case "double":
		var f float64
		err := json.Unmarshal(jv.Value, &f)
		return Real(f), err
	case "blob":
		var b []byte
		err := json.Unmarshal(jv.Value, &b)
		return Blob(b), err
	case "null":
		return Null{}, nil
	default:
		return nil, errors.Errorf("unknown value type %q", jv.Type)
	}
}

// values is a JSON-codable list of Values.
type values []Value

func (vs values) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, len(vs))
	for i, v := range vs {
		b, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		raws[i] = b
	}
	return json.Marshal(raws)
}

func (vs *values) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(values, len(raws))
	for i, raw := range raws {
		v, err := unmarshalValue(raw)
		if err != nil {
			return errors.WithMessagef(err, "decoding value %d", i)
		}
		out[i] = v
	}
	*vs = out
	return nil
}
