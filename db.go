package rowstore

import (
	"context"
	"database/sql"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DB is a handle to one database file. A handle holds a single connection,
// so it must be used by one logical owner at a time; a handle returned by
// ReadOnly may be used concurrently with it.
type DB struct {
	db  *sql.DB
	cfg Config
	log *log.Entry
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for schema changes and query fallbacks.
func WithLogger(l *log.Entry) Option {
	return func(d *DB) { d.log = l }
}

// Open opens the database described by cfg, creating the file unless the
// config is read-only, and applies its pragmas.
func Open(ctx context.Context, cfg Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// Statements and transactions share the one connection, which keeps
	// pragmas and IMMEDIATE transactions on the connection that runs them.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "connecting to %s", cfg.Path)
	}
	for _, pragma := range cfg.pragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "executing %q", pragma)
		}
	}

	d := &DB{
		db:  db,
		cfg: cfg,
		log: log.WithFields(log.Fields{"db": cfg.Path, "readOnly": cfg.ReadOnly}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ReadOnly opens a second, read-only handle on the same file.
func (d *DB) ReadOnly(ctx context.Context) (*DB, error) {
	cfg := d.cfg
	cfg.ReadOnly = true
	return Open(ctx, cfg, WithLogger(d.log.WithField("readOnly", true)))
}

// IsReadOnly reports whether writes through the handle are refused.
func (d *DB) IsReadOnly() bool { return d.cfg.ReadOnly }

// Path is the database file path.
func (d *DB) Path() string { return d.cfg.Path }

// SQL returns the underlying *sql.DB.
func (d *DB) SQL() *sql.DB { return d.db }

// Close closes the handle.
func (d *DB) Close() error { return d.db.Close() }

// Table reads the live schema of a table.
func (d *DB) Table(ctx context.Context, name string) (Table, error) {
	return readTable(ctx, d.conn(ctx), name)
}

// Tables lists the user tables of the database.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	return listTables(ctx, d.conn(ctx))
}

// DropTable drops a table if it exists.
func (d *DB) DropTable(ctx context.Context, name string) error {
	_, err := d.exec(ctx, opDDL, statement{query: dropTableSQL(name)})
	if err == nil {
		d.log.WithField("table", name).Info("dropped table")
	}
	return err
}

// DeleteEverything closes the handle and removes the database file together
// with its WAL and shared-memory companions.
func (d *DB) DeleteEverything() error {
	if d.cfg.ReadOnly {
		return ErrReadOnly
	}
	if err := d.db.Close(); err != nil {
		return errors.Wrap(err, "closing database")
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(d.cfg.Path + suffix); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "removing database file")
		}
	}
	d.log.Info("deleted database")
	return nil
}

// conn returns the transaction carried by ctx, or the handle itself.
func (d *DB) conn(ctx context.Context) querier {
	if tx, ok := GetTx(ctx); ok {
		return tx
	}
	return d.db
}

func (d *DB) exec(ctx context.Context, op string, st statement) (sql.Result, error) {
	if d.cfg.ReadOnly {
		return nil, ErrReadOnly
	}
	statementsTotal.WithLabelValues(op).Inc()
	res, err := d.conn(ctx).ExecContext(ctx, st.query, st.args()...)
	if err != nil {
		return nil, d.failed(err, st)
	}
	return res, nil
}

// query runs a statement and leaves its result set open. Engine errors,
// including prepare-time missing columns, are classified.
func (d *DB) query(ctx context.Context, op string, st statement) (*sql.Rows, error) {
	statementsTotal.WithLabelValues(op).Inc()
	rows, err := d.conn(ctx).QueryContext(ctx, st.query, st.args()...)
	if err != nil {
		return nil, d.failed(err, st)
	}
	return rows, nil
}

// failed classifies an engine error. Syntax errors are defects in statement
// generation and are logged loudly.
func (d *DB) failed(err error, st statement) error {
	err = classify(err, st.query)
	if errors.Is(err, ErrSyntax) {
		d.log.WithFields(log.Fields{"query": st.query, "err": err}).Error("generated malformed statement")
	}
	return err
}
