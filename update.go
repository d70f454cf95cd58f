package rowstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Assignment sets one column in a partial Update. Build one with Field.To.
type Assignment[T Model] struct {
	column  string
	value   Value
	colType ColumnType
}

func (a Assignment[T]) pair() Pair {
	return Pair{Column: a.column, Value: a.value, Type: a.colType}
}

// Update changes some columns of the records matching a filter, leaving the
// other columns as they are.
type Update[T Model] struct {
	filter Filter[T]
	id     Value
	set    []Assignment[T]
}

// NewUpdate returns an update of the records matching f.
func NewUpdate[T Model](f Filter[T]) Update[T] {
	return Update[T]{filter: f}
}

// UpdateByID returns an update of the record stored under the primary key id.
func UpdateByID[T Model, K any](id K) Update[T] {
	return Update[T]{id: mustValue(id)}
}

// Set adds assignments. A later assignment to the same column wins.
func (u Update[T]) Set(as ...Assignment[T]) Update[T] {
	set := make([]Assignment[T], 0, len(u.set)+len(as))
	set = append(set, u.set...)
	for _, a := range as {
		for i := range set {
			if set[i].column == a.column {
				set = append(set[:i], set[i+1:]...)
				break
			}
		}
		set = append(set, a)
	}
	u.set = set
	return u
}

func (u Update[T]) pairs() []Pair {
	out := make([]Pair, len(u.set))
	for i, a := range u.set {
		out[i] = a.pair()
	}
	return out
}

// String describes the update.
func (u Update[T]) String() string {
	var zero T
	sets := make([]string, len(u.set))
	for i, a := range u.set {
		sets[i] = fmt.Sprintf("%s = %s", a.column, FormatValue(a.value))
	}
	s := fmt.Sprintf("update %s set %s", zero.TableName(), strings.Join(sets, ", "))
	if u.id != nil {
		return s + " where primary key is " + FormatValue(u.id)
	}
	if u.filter.UsesColumns() || u.filter.limit != nil {
		return s + " matching " + u.filter.String()
	}
	return s
}

// Apply runs a partial update and returns how many records changed. Columns
// the table lacks are added first; a missing table holds nothing to update.
// As with DeleteWhere, filtering on a column the table lacks is an error.
func (s *Store[T]) Apply(ctx context.Context, u Update[T]) (int64, error) {
	if s.db.IsReadOnly() {
		return 0, ErrReadOnly
	}
	if len(u.set) == 0 {
		return 0, nil
	}
	f := u.filter
	if u.id != nil {
		f = Filter[T]{where: leaf{column: s.PrimaryKey(), op: OpIs, values: []Value{u.id}}}
	}

	table, err := s.db.Table(ctx, s.desc.table)
	if errors.Is(err, ErrNoSuchTable) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	if missing := table.Missing(f.Columns()); len(missing) != 0 {
		return 0, errors.WithMessagef(&ColumnError{Column: missing[0]}, "updating %s", s.desc.table)
	}
	pairs := u.pairs()
	if len(NewColumns(pairs, table)) != 0 {
		if _, err := s.ensureColumns(ctx, pairs); err != nil {
			return 0, err
		}
	}

	res, err := s.db.exec(ctx, opUpdate, updateSQL(s.desc.table, pairs, f.Lower()))
	if err != nil {
		return 0, errors.WithMessagef(err, "updating %s", s.desc.table)
	}
	return rowsAffected(res)
}
