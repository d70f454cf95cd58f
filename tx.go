package rowstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// txContextKey is a private key for storing the transaction in the context.
type txContextKey struct{}

// GetTx retrieves a transaction from the context, if one exists.
func GetTx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx, ok
}

// InjectTx returns a new context with the provided transaction injected.
// This is for users who want to manage the transaction lifecycle manually.
// Every operation of a DB runs on the transaction carried by its context.
func InjectTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// WithTransaction executes fn within an immediate transaction, committing
// if fn returns nil and rolling back otherwise. When ctx already carries a
// transaction, fn joins it and the outermost caller decides the outcome.
func (d *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}
	if d.cfg.ReadOnly {
		return ErrReadOnly
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	// Defer a rollback. It will be a no-op if the transaction is committed.
	defer func() { _ = tx.Rollback() }()

	if err := fn(InjectTx(ctx, tx)); err != nil {
		transactionsTotal.WithLabelValues("rollback").Inc()
		return err
	}
	if err := tx.Commit(); err != nil {
		transactionsTotal.WithLabelValues("rollback").Inc()
		return errors.Wrap(err, "committing transaction")
	}
	transactionsTotal.WithLabelValues("commit").Inc()
	return nil
}
