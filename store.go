package rowstore

import (
	"context"
	"database/sql"
	"iter"
	"reflect"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Store persists records of type T in their own table, one column per field.
// Tables and columns are created as records are saved, so a Store never
// needs a schema up front.
type Store[T Model] struct {
	db   *DB
	desc *descriptor
}

// NewStore validates the record type T and returns its Store.
func NewStore[T Model](db *DB) (*Store[T], error) {
	desc, err := describeModel[T]()
	if err != nil {
		return nil, errors.WithMessage(err, "invalid record type")
	}
	return &Store[T]{db: db, desc: desc}, nil
}

// TableName is the name of the table backing the store.
func (s *Store[T]) TableName() string { return s.desc.table }

// PrimaryKey is the primary key column.
func (s *Store[T]) PrimaryKey() string { return s.desc.primaryKey().column }

// Get returns the records matching f. A missing table holds no records.
func (s *Store[T]) Get(ctx context.Context, f Filter[T]) ([]T, error) {
	seq, err := s.Iter(ctx, f)
	if err != nil {
		return nil, err
	}
	var out []T
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Iter returns an iterator over the records matching f, reading one row at a
// time. The iterator yields a record and an error for each item and stops
// at the first error, or when ctx is done.
//
// Conditions and sort keys on columns the table does not have are dropped
// before the query runs. Should the engine still report a missing column,
// that column is dropped and the query retried, at most once per column the
// filter references; after that the query runs with no predicate at all.
//
// The result set holds the handle's connection until the loop ends, so the
// returned iterator must be ranged over, and the loop body must not use the
// same handle outside a transaction.
func (s *Store[T]) Iter(ctx context.Context, f Filter[T]) (iter.Seq2[T, error], error) {
	table, rows, err := s.queryPruned(ctx, opSelect, f, func(q Lowered) statement {
		return selectSQL(s.desc.table, q)
	})
	if errors.Is(err, ErrNoSuchTable) {
		return func(func(T, error) bool) {}, nil
	} else if err != nil {
		return nil, errors.WithMessagef(err, "querying %s", s.desc.table)
	}
	names, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, "reading result columns")
	}

	seq := func(yield func(T, error) bool) {
		defer func() {
			_ = rows.Close()
		}()
		var zero T

		for rows.Next() {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			row, err := scanRow(rows, names)
			if err != nil {
				yield(zero, err)
				return
			}
			var rec T
			if err := readFields(s.desc, row, table, reflect.ValueOf(&rec).Elem()); err != nil {
				yield(zero, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(zero, errors.Wrapf(err, "iterating %s", s.desc.table))
		}
	}
	return seq, nil
}

// GetOne returns the single record matching f. It returns sql.ErrNoRows if
// nothing matches and an error if more than one record does. Any limit on f
// is replaced.
func (s *Store[T]) GetOne(ctx context.Context, f Filter[T]) (T, error) {
	var zero T
	// We only need to know if there is 0, 1, or >1 result.
	recs, err := s.Get(ctx, f.Limit(2, 0))
	switch {
	case err != nil:
		return zero, err
	case len(recs) == 0:
		return zero, errors.WithMessagef(sql.ErrNoRows, "no %s matching %s", s.desc.table, f)
	case len(recs) > 1:
		return zero, errors.Errorf("expected one %s matching %s, but found multiple", s.desc.table, f)
	}
	return recs[0], nil
}

// Count returns the number of records matching f.
func (s *Store[T]) Count(ctx context.Context, f Filter[T]) (int, error) {
	_, rs, err := s.queryPruned(ctx, opCount, f, func(q Lowered) statement {
		return countSQL(s.desc.table, q)
	})
	if errors.Is(err, ErrNoSuchTable) {
		return 0, nil
	} else if err != nil {
		return 0, errors.WithMessagef(err, "counting %s", s.desc.table)
	}
	rows, err := scanRows(rs)
	if err != nil {
		return 0, errors.WithMessagef(err, "counting %s", s.desc.table)
	}
	return int(firstInt(rows)), nil
}

// Distinct returns the distinct values of a field among the records matching
// f. A column the table does not have yet holds no values.
func Distinct[T Model, V any](ctx context.Context, s *Store[T], fld Field[T, V], f Filter[T]) ([]V, error) {
	table, rs, err := s.queryPruned(ctx, opDistinct, f, func(q Lowered) statement {
		return distinctSQL(s.desc.table, fld.Name(), q)
	}, fld.Name())
	if errors.Is(err, ErrNoSuchTable) || errors.Is(err, errMissingTarget) {
		return nil, nil
	} else if err != nil {
		return nil, errors.WithMessagef(err, "selecting distinct %s of %s", fld.Name(), s.desc.table)
	}
	rows, err := scanRows(rs)
	if err != nil {
		return nil, errors.WithMessagef(err, "selecting distinct %s of %s", fld.Name(), s.desc.table)
	}

	target := valueField(fld.Name(), reflect.TypeFor[V]())
	out := make([]V, 0, len(rows))
	for _, row := range rows {
		c, ok := row.Cell(fld.Name())
		if !ok {
			return nil, &ColumnError{Column: fld.Name()}
		}
		var v V
		if err := decodeField(target, c, reflect.ValueOf(&v).Elem()); err != nil {
			return nil, errors.WithMessagef(err, "reading distinct %s of %s", fld.Name(), table.Name)
		}
		out = append(out, v)
	}
	return out, nil
}

// DistinctCount returns the number of distinct values of a field among the
// records matching f.
func DistinctCount[T Model, V any](ctx context.Context, s *Store[T], fld Field[T, V], f Filter[T]) (int64, error) {
	_, rs, err := s.queryPruned(ctx, opDistinct, f, func(q Lowered) statement {
		return distinctCountSQL(s.desc.table, fld.Name(), q)
	}, fld.Name())
	if errors.Is(err, ErrNoSuchTable) || errors.Is(err, errMissingTarget) {
		return 0, nil
	} else if err != nil {
		return 0, errors.WithMessagef(err, "counting distinct %s of %s", fld.Name(), s.desc.table)
	}
	rows, err := scanRows(rs)
	if err != nil {
		return 0, errors.WithMessagef(err, "counting distinct %s of %s", fld.Name(), s.desc.table)
	}
	return firstInt(rows), nil
}

// Save inserts the record, or replaces the whole row stored under its primary
// key. The table is created, and missing columns added, as needed.
func (s *Store[T]) Save(ctx context.Context, record T) error {
	pairs, err := writeFields(s.desc, reflect.ValueOf(record))
	if err != nil {
		return err
	}
	if _, err := s.ensureColumns(ctx, pairs); err != nil {
		return err
	}
	if _, err := s.db.exec(ctx, opReplace, replaceSQL(s.desc.table, pairs)); err != nil {
		return errors.WithMessagef(err, "saving %s", s.desc.table)
	}
	return nil
}

// Delete removes the row stored under the record's primary key.
func (s *Store[T]) Delete(ctx context.Context, record T) error {
	f, err := s.byKey(reflect.ValueOf(record))
	if err != nil {
		return err
	}
	_, err = s.DeleteWhere(ctx, f)
	return err
}

// DeleteWhere removes the records matching f and returns how many were
// removed. Unlike queries, a filter on a column the table lacks is an error:
// dropping the condition would widen the delete.
func (s *Store[T]) DeleteWhere(ctx context.Context, f Filter[T]) (int64, error) {
	if s.db.IsReadOnly() {
		return 0, ErrReadOnly
	}
	table, err := s.db.Table(ctx, s.desc.table)
	if errors.Is(err, ErrNoSuchTable) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	if missing := table.Missing(f.Columns()); len(missing) != 0 {
		return 0, errors.WithMessagef(&ColumnError{Column: missing[0]}, "deleting from %s", s.desc.table)
	}
	res, err := s.db.exec(ctx, opDelete, deleteSQL(s.desc.table, f.Lower()))
	if err != nil {
		return 0, errors.WithMessagef(err, "deleting from %s", s.desc.table)
	}
	return rowsAffected(res)
}

// byKey is the filter selecting the row of the record held by rv.
func (s *Store[T]) byKey(rv reflect.Value) (Filter[T], error) {
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	pk := s.desc.primaryKey()
	v, err := valueOf(rv.FieldByIndex(pk.index))
	if err != nil {
		return Filter[T]{}, errors.WithMessagef(err, "primary key of %s", s.desc.table)
	}
	return Filter[T]{where: leaf{column: pk.column, op: OpIs, values: []Value{v}}}, nil
}

// ensureColumns creates the table, or adds the columns it lacks, so that
// pairs can be written. It returns the schema as it is afterwards.
func (s *Store[T]) ensureColumns(ctx context.Context, pairs []Pair) (Table, error) {
	if s.db.IsReadOnly() {
		return Table{}, ErrReadOnly
	}
	name := s.desc.table
	table, err := s.db.Table(ctx, name)
	switch {
	case errors.Is(err, ErrNoSuchTable):
		def := DefineTable(name, pairs, s.desc.primaryKey().column)
		if _, err := s.db.exec(ctx, opDDL, statement{query: def.CreateSQL()}); err != nil {
			return Table{}, errors.WithMessagef(err, "creating table %s", name)
		}
		createdTablesTotal.Inc()
		s.db.log.WithFields(log.Fields{"table": name, "columns": len(def.Columns)}).Info("created table")
	case err != nil:
		return Table{}, err
	default:
		added := NewColumns(pairs, table)
		if len(added) == 0 {
			return table, nil
		}
		for _, c := range added {
			if _, err := s.db.exec(ctx, opDDL, statement{query: addColumnSQL(name, c)}); err != nil {
				return Table{}, errors.WithMessagef(err, "adding column %s to %s", c.Name, name)
			}
			addedColumnsTotal.WithLabelValues(name).Inc()
			s.db.log.WithFields(log.Fields{"table": name, "column": c.Name, "type": c.Type}).Info("added column")
		}
	}
	return s.db.Table(ctx, name)
}

// errMissingTarget reports that the column a distinct query selects does not
// exist. Selecting it anyway would make the engine read the quoted name as
// a string literal.
var errMissingTarget = errors.New("selected column does not exist")

// queryPruned runs the statement built from f, first dropping what f
// references that the live table lacks. It returns the table it checked
// against so rows can be read without a second catalog lookup. The caller
// owns the open result set.
func (s *Store[T]) queryPruned(ctx context.Context, op string, f Filter[T], build func(Lowered) statement, selected ...string) (Table, *sql.Rows, error) {
	table, err := s.db.Table(ctx, s.desc.table)
	if err != nil {
		return Table{}, nil, err
	}
	if len(table.Missing(selected)) != 0 {
		return table, nil, errMissingTarget
	}
	for _, c := range table.Missing(f.Columns()) {
		s.pruned(c, "not in table")
		f = f.Remove(c)
	}

	retries := len(f.Columns())
	for {
		rows, err := s.db.query(ctx, op, build(f.Lower()))
		var pe *PrepareError
		if err == nil || !errors.As(err, &pe) || pe.Kind != ErrNoSuchColumn || !f.UsesColumns() {
			return table, rows, err
		}
		next := f.Remove(pe.Name)
		if retries == 0 || len(next.Columns()) == len(f.Columns()) {
			s.pruned(pe.Name, "retries exhausted, dropping all conditions")
			next = f.Unfiltered()
		} else {
			s.pruned(pe.Name, "rejected by engine")
			retries--
		}
		f = next
	}
}

func (s *Store[T]) pruned(column, reason string) {
	prunedColumnsTotal.WithLabelValues(s.desc.table).Inc()
	s.db.log.WithFields(log.Fields{
		"table":  s.desc.table,
		"column": column,
		"reason": reason,
	}).Warn("dropping filter column")
}

// valueField describes a standalone value of type t stored in column.
func valueField(column string, t reflect.Type) field {
	ct, scalar := scalarType(t)
	return field{column: column, typ: t, colType: ct, scalar: scalar, optional: t.Kind() == reflect.Pointer}
}

func firstInt(rows []Row) int64 {
	if len(rows) == 0 || len(rows[0].cells) == 0 {
		return 0
	}
	return rows[0].cells[0].Int64()
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading affected rows")
}
