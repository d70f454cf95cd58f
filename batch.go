package rowstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Action is one write of a Batch.
type Action interface {
	apply(ctx context.Context, db *DB) error
	String() string
}

// Batch is an ordered list of writes applied all-or-nothing by DB.Transact.
type Batch struct {
	actions []Action
}

// NewBatch returns a batch of the given actions.
func NewBatch(actions ...Action) Batch {
	return Batch{actions: append([]Action(nil), actions...)}
}

// Add returns a batch with actions appended.
func (b Batch) Add(actions ...Action) Batch {
	out := make([]Action, 0, len(b.actions)+len(actions))
	out = append(out, b.actions...)
	b.actions = append(out, actions...)
	return b
}

// Len is the number of actions.
func (b Batch) Len() int { return len(b.actions) }

// String lists the actions, one per line.
func (b Batch) String() string {
	lines := make([]string, len(b.actions))
	for i, a := range b.actions {
		lines[i] = fmt.Sprintf("%d. %s", i+1, a)
	}
	return fmt.Sprintf("Batch(%d actions)\n%s", len(b.actions), strings.Join(lines, "\n"))
}

// Transact applies the batch in one immediate transaction. The first failing
// action rolls the whole batch back and its error is returned.
func (d *DB) Transact(ctx context.Context, b Batch) error {
	return d.WithTransaction(ctx, func(ctx context.Context) error {
		for i, a := range b.actions {
			if err := a.apply(ctx, d); err != nil {
				d.log.WithField("action", a.String()).WithError(err).Warn("rolling back batch")
				return errors.WithMessagef(err, "batch action %d (%s)", i+1, a)
			}
		}
		return nil
	})
}

type saveAction[T Model] struct{ records []T }

// SaveAll saves each record.
func SaveAll[T Model](records ...T) Action {
	return saveAction[T]{records: records}
}

func (a saveAction[T]) apply(ctx context.Context, db *DB) error {
	s, err := NewStore[T](db)
	if err != nil {
		return err
	}
	for _, r := range a.records {
		if err := s.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (a saveAction[T]) String() string {
	var zero T
	return fmt.Sprintf("save %d %s", len(a.records), zero.TableName())
}

type deleteAction[T Model] struct{ records []T }

// DeleteAll deletes each record by its primary key.
func DeleteAll[T Model](records ...T) Action {
	return deleteAction[T]{records: records}
}

func (a deleteAction[T]) apply(ctx context.Context, db *DB) error {
	s, err := NewStore[T](db)
	if err != nil {
		return err
	}
	for _, r := range a.records {
		if err := s.Delete(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (a deleteAction[T]) String() string {
	var zero T
	return fmt.Sprintf("delete %d %s", len(a.records), zero.TableName())
}

type deleteWhereAction[T Model] struct{ filter Filter[T] }

// DeleteMatching deletes the records matching f.
func DeleteMatching[T Model](f Filter[T]) Action {
	return deleteWhereAction[T]{filter: f}
}

func (a deleteWhereAction[T]) apply(ctx context.Context, db *DB) error {
	s, err := NewStore[T](db)
	if err != nil {
		return err
	}
	_, err = s.DeleteWhere(ctx, a.filter)
	return err
}

func (a deleteWhereAction[T]) String() string {
	return "delete matching " + a.filter.String()
}

func (u Update[T]) apply(ctx context.Context, db *DB) error {
	s, err := NewStore[T](db)
	if err != nil {
		return err
	}
	_, err = s.Apply(ctx, u)
	return err
}
