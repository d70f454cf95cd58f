package rowstore_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dir01/rowstore"
)

type Level int

const (
	LevelLow Level = iota + 1
	LevelHigh
)

type Color string

// Celsius stores itself as a REAL.
type Celsius struct{ Degrees float64 }

func (c Celsius) BindingValue() rowstore.Value { return rowstore.Real(c.Degrees) }

func (c *Celsius) Unbind(cell rowstore.Cell) error {
	c.Degrees = cell.Float64()
	return nil
}

func (Celsius) ColumnType() rowstore.ColumnType { return rowstore.TypeReal }

// roundTrip converts x to a Value and decodes it back into a fresh value of
// the same type.
func roundTrip(t *testing.T, x any) any {
	t.Helper()
	v, err := rowstore.ToValue(x)
	require.NoError(t, err)
	dst := reflect.New(reflect.TypeOf(x))
	require.NoError(t, rowstore.FromValue(rowstore.ValueCell(v), dst.Interface()))
	return dst.Elem().Interface()
}

func TestRoundTrip(t *testing.T) {
	s := "hello"
	cases := map[string]any{
		"string":       "héllo wörld",
		"empty string": "",
		"bool true":    true,
		"bool false":   false,
		"int":          -42,
		"int8":         int8(math.MinInt8),
		"int16":        int16(math.MaxInt16),
		"int32":        int32(math.MinInt32),
		"int64":        int64(math.MaxInt64),
		"uint":         uint(7),
		"uint8":        uint8(math.MaxUint8),
		"uint16":       uint16(math.MaxUint16),
		"uint32":       uint32(math.MaxUint32),
		"uint64 small": uint64(12345),
		"uint64 max":   uint64(math.MaxUint64),
		"uint64 edge":  uint64(math.MaxInt64) + 1,
		"float32":      float32(1.5),
		"float64":      math.Pi,
		"bytes":        []byte{0, 1, 2, 255},
		"uuid":         uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		"named int":    LevelHigh,
		"named string": Color("teal"),
		"bindable":     Celsius{Degrees: -3.25},
		"pointer":      &s,
	}
	for name, x := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, x, roundTrip(t, x))
		})
	}

	t.Run("time", func(t *testing.T) {
		want := time.Date(2024, 2, 29, 23, 59, 58, 123456789, time.FixedZone("X", 3600))
		got := roundTrip(t, want).(time.Time)
		assert.True(t, want.Equal(got), "got %s, want %s", got, want)
		assert.Equal(t, time.UTC, got.Location())
	})

	t.Run("nil pointer", func(t *testing.T) {
		var p *int
		v, err := rowstore.ToValue(p)
		require.NoError(t, err)
		assert.Equal(t, rowstore.Null{}, v)
		assert.Nil(t, roundTrip(t, p))
	})
}

func TestUint64Mapping(t *testing.T) {
	cases := []struct {
		in   uint64
		want int64
	}{
		{0, 0},
		{math.MaxInt64, math.MaxInt64},
		{math.MaxInt64 + 1, -1},
		{math.MaxInt64 + 2, -2},
		{math.MaxUint64, math.MinInt64},
	}
	for _, c := range cases {
		v, err := rowstore.ToValue(c.in)
		require.NoError(t, err)
		assert.Equal(t, rowstore.Integer(c.want), v, "storing %d", c.in)
	}
}

func TestFromValueNull(t *testing.T) {
	null := rowstore.ValueCell(rowstore.Null{})

	var n int
	err := rowstore.FromValue(null, &n)
	assert.True(t, errors.Is(err, rowstore.ErrUnexpectedNull))

	p := new(int)
	require.NoError(t, rowstore.FromValue(null, &p))
	assert.Nil(t, p)

	t.Run("destination must be a pointer", func(t *testing.T) {
		assert.Error(t, rowstore.FromValue(null, n))
	})
}

func TestToValueUnsupported(t *testing.T) {
	_, err := rowstore.ToValue(map[string]int{"a": 1})
	assert.True(t, errors.Is(err, rowstore.ErrUnsupportedType))
}

func TestCellCoercion(t *testing.T) {
	c := rowstore.ValueCell(rowstore.Text("42"))
	assert.Equal(t, int64(42), c.Int64())
	assert.Equal(t, 42.0, c.Float64())
	assert.Equal(t, []byte("42"), c.Blob())
	assert.False(t, c.IsNull())

	r := rowstore.ValueCell(rowstore.Real(2.5))
	assert.Equal(t, int64(2), r.Int64())
	assert.Equal(t, "2.5", r.Text())

	assert.Equal(t, int64(0), rowstore.ValueCell(rowstore.Text("abc")).Int64())
}

func TestValueFormatting(t *testing.T) {
	assert.Equal(t, "'x'", rowstore.FormatValue(rowstore.Text("x")))
	assert.Equal(t, "-3", rowstore.FormatValue(rowstore.Integer(-3)))
	assert.Equal(t, "0.5", rowstore.FormatValue(rowstore.Real(0.5)))
	assert.Equal(t, "[blob:3-bytes]", rowstore.FormatValue(rowstore.Blob{1, 2, 3}))
	assert.Equal(t, "NULL", rowstore.FormatValue(rowstore.Null{}))

	assert.Equal(t, rowstore.TypeInteger, rowstore.TypeOf(rowstore.Null{}))
	assert.Equal(t, rowstore.TypeText, rowstore.TypeOf(rowstore.Text("")))
	assert.Equal(t, "FLOAT", rowstore.TypeOf(rowstore.Real(1)).DDL())
}
