package rowstore

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Sortable is a column of record type T that a filter can sort by.
type Sortable[T Model] interface {
	Name() string
	columnOf(T)
}

// Field names a column of record type T whose Go type is V. Declare one per
// persisted field that queries need to reference:
//
//	var PersonAge = rowstore.NewField[Person, int]("age")
type Field[T Model, V any] struct {
	name string
}

// NewField returns the field stored in the named column.
func NewField[T Model, V any](column string) Field[T, V] {
	return Field[T, V]{name: column}
}

// Name returns the column name.
func (f Field[T, V]) Name() string { return f.name }

func (Field[T, V]) columnOf(T) {}

// Is applies a rule to the field.
func (f Field[T, V]) Is(r Rule[V]) Condition[T] {
	return Condition[T]{leaf: leaf{column: f.name, op: r.op, values: r.values, method: r.method}}
}

// To assigns a value to the field in a partial Update.
func (f Field[T, V]) To(v V) Assignment[T] {
	ct, _ := scalarType(reflect.TypeFor[V]())
	return Assignment[T]{column: f.name, value: mustValue(v), colType: ct}
}

// Condition is a single condition on a column of T.
type Condition[T Model] struct {
	leaf leaf
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) sql() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

type sortKey struct {
	column    string
	direction Direction
}

// Limit bounds a query to Count rows starting at page Page (0-indexed).
type Limit struct {
	Count int
	Page  int
}

// Offset is the number of rows skipped. Negative pages count as page 0.
func (l Limit) Offset() int {
	return max(0, l.Page) * l.Count
}

// Filter is an immutable query for records of type T: an
// optional predicate tree, an optional sort chain and an optional limit.
// The zero Filter matches every record. Every method returns a new Filter
// and leaves the receiver untouched.
type Filter[T Model] struct {
	where node
	sorts []sortKey
	limit *Limit
}

// All returns the Filter matching every record.
func All[T Model]() Filter[T] { return Filter[T]{} }

// Where returns a Filter with a single condition.
func Where[T Model](c Condition[T]) Filter[T] {
	return Filter[T]{where: c.leaf}
}

// And appends a condition joined by AND, without parentheses.
func (f Filter[T]) And(c Condition[T]) Filter[T] {
	f.where = join(f.where, And, c.leaf, false)
	return f
}

// Or appends a condition joined by OR, without parentheses.
func (f Filter[T]) Or(c Condition[T]) Filter[T] {
	f.where = join(f.where, Or, c.leaf, false)
	return f
}

// AndFilter combines two filters with AND, parenthesizing each side. The
// result takes the sort and limit of other, discarding those of f.
func (f Filter[T]) AndFilter(other Filter[T]) Filter[T] {
	return Filter[T]{
		where: join(f.where, And, other.where, true),
		sorts: other.sorts,
		limit: other.limit,
	}
}

// OrFilter combines two filters with OR, parenthesizing each side. The
// result takes the sort and limit of other, discarding those of f.
func (f Filter[T]) OrFilter(other Filter[T]) Filter[T] {
	return Filter[T]{
		where: join(f.where, Or, other.where, true),
		sorts: other.sorts,
		limit: other.limit,
	}
}

// SortBy appends a sort key to the sort chain.
func (f Filter[T]) SortBy(col Sortable[T], dir Direction) Filter[T] {
	f.sorts = append(slices.Clone(f.sorts), sortKey{column: col.Name(), direction: dir})
	return f
}

// Limit replaces any existing limit.
func (f Filter[T]) Limit(count, page int) Filter[T] {
	f.limit = &Limit{Count: count, Page: page}
	return f
}

// Unlimited drops the limit.
func (f Filter[T]) Unlimited() Filter[T] {
	f.limit = nil
	return f
}

// Remove drops every condition and sort key referencing column.
func (f Filter[T]) Remove(column string) Filter[T] {
	f.where = prune(f.where, column)
	f.sorts = slices.DeleteFunc(slices.Clone(f.sorts), func(s sortKey) bool {
		return s.column == column
	})
	return f
}

// Unfiltered drops the predicate tree and sort chain, keeping the limit.
func (f Filter[T]) Unfiltered() Filter[T] {
	return Filter[T]{limit: f.limit}
}

// UsesColumns reports whether the filter references any column.
func (f Filter[T]) UsesColumns() bool {
	return f.where != nil || len(f.sorts) != 0
}

// Columns returns the distinct referenced columns in order of appearance.
func (f Filter[T]) Columns() []string {
	var out []string
	add := func(c string) {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	walkLeaves(f.where, func(l leaf) { add(l.column) })
	for _, s := range f.sorts {
		add(s.column)
	}
	return out
}

// SortKeys returns the sort chain as column names and directions.
func (f Filter[T]) SortKeys() ([]string, []Direction) {
	cols := make([]string, len(f.sorts))
	dirs := make([]Direction, len(f.sorts))
	for i, s := range f.sorts {
		cols[i], dirs[i] = s.column, s.direction
	}
	return cols, dirs
}

// Paging returns the limit, if any.
func (f Filter[T]) Paging() (Limit, bool) {
	if f.limit == nil {
		return Limit{}, false
	}
	return *f.limit, true
}

// String renders a human-readable description with literal values inlined.
func (f Filter[T]) String() string {
	var zero T
	parts := []string{fmt.Sprintf("Filter<%s>:", zero.TableName())}
	if f.where != nil {
		parts = append(parts, "WHERE "+describeNode(f.where))
	}
	if len(f.sorts) != 0 {
		parts = append(parts, orderBySQL(f.sorts))
	}
	if f.limit != nil {
		s := fmt.Sprintf("LIMIT %d", f.limit.Count)
		if off := f.limit.Offset(); off > 0 {
			s += fmt.Sprintf(" OFFSET %d", off)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func describeNode(n node) string {
	switch n := n.(type) {
	case leaf:
		return n.describe()
	case compound:
		l, r := describeNode(n.left), describeNode(n.right)
		if n.grouped {
			return fmt.Sprintf("(%s) %s (%s)", l, n.conj, r)
		}
		return fmt.Sprintf("%s %s %s", l, n.conj, r)
	}
	return ""
}
