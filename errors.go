package rowstore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNoSuchTable is the kind of a statement that referenced a missing table.
	ErrNoSuchTable = errors.New("no such table")
	// ErrNoSuchColumn is the kind of a statement that referenced a missing column.
	ErrNoSuchColumn = errors.New("no such column")
	// ErrSyntax is the kind of a malformed statement. It always indicates a
	// defect in statement generation.
	ErrSyntax = errors.New("syntax error")
	// ErrUnexpectedNull is returned when a NULL is read into a non-pointer field.
	ErrUnexpectedNull = errors.New("unexpected NULL")
	// ErrUnsupportedType is returned for Go types that have no Value mapping.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrNoPrimaryKey is returned for record types without a primary key field.
	ErrNoPrimaryKey = errors.New("no primary key field")
	// ErrReadOnly is returned when writing through a read-only handle.
	ErrReadOnly = errors.New("database handle is read-only")
)

// PrepareError is a classified failure reported by the engine for a statement.
type PrepareError struct {
	// Kind is one of ErrNoSuchTable, ErrNoSuchColumn or ErrSyntax.
	Kind error
	// Name is the missing table or column, or the syntax error message.
	Name  string
	Query string
	Err   error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("%s: %s (query: %s)", e.Kind, e.Name, e.Query)
}

func (e *PrepareError) Unwrap() error { return e.Kind }

// ColumnError is returned by the Reader when a declared field has no column in
// the physical table.
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("no such column: `%s`", e.Column)
}

func (e *ColumnError) Unwrap() error { return ErrNoSuchColumn }

// classify maps an engine error onto the error taxonomy. Errors it does not
// recognize, such as I/O failures, are returned wrapped but otherwise intact.
func classify(err error, query string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if i := strings.Index(msg, "no such table: "); i >= 0 {
		return &PrepareError{Kind: ErrNoSuchTable, Name: trimName(msg[i+len("no such table: "):]), Query: query, Err: err}
	}
	if i := strings.Index(msg, "no such column: "); i >= 0 {
		return &PrepareError{Kind: ErrNoSuchColumn, Name: trimName(msg[i+len("no such column: "):]), Query: query, Err: err}
	}
	if i := strings.Index(msg, ": syntax error"); i >= 0 {
		return &PrepareError{Kind: ErrSyntax, Name: msg[:i], Query: query, Err: err}
	}
	return errors.Wrapf(err, "executing %q", query)
}

// trimName drops whatever the driver appended after the identifier, such as
// the modernc "(1)" result code suffix.
func trimName(s string) string {
	if i := strings.IndexAny(s, " \t\n("); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, `"'`)
}
