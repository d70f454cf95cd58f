package rowstore

import (
	"fmt"
	"strings"
)

// Lowered is a Filter translated into SQL clauses and the values bound to
// their placeholders. Bindings[i] belongs to the i-th "?" of Clause().
type Lowered struct {
	Where    string
	OrderBy  string
	Limit    string
	Bindings []Value
}

// Clause joins the non-empty clauses in WHERE, ORDER BY, LIMIT order.
func (q Lowered) Clause() string {
	var parts []string
	for _, p := range []string{q.Where, q.OrderBy, q.Limit} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Lower translates the filter into SQL. It is deterministic and pure.
func (f Filter[T]) Lower() Lowered {
	var q Lowered
	if f.where != nil {
		text, bindings := renderNode(f.where)
		q.Where = "WHERE " + text
		q.Bindings = bindings
	}
	if len(f.sorts) != 0 {
		q.OrderBy = orderBySQL(f.sorts)
	}
	if f.limit != nil {
		q.Limit = "LIMIT ?"
		q.Bindings = append(q.Bindings, Integer(f.limit.Count))
		if off := f.limit.Offset(); off > 0 {
			q.Limit += " OFFSET ?"
			q.Bindings = append(q.Bindings, Integer(off))
		}
	}
	return q
}

// renderNode produces text and bindings in a single pre-order walk, so the
// bindings are always in placeholder order.
func renderNode(n node) (string, []Value) {
	switch n := n.(type) {
	case leaf:
		return n.sql(), append([]Value(nil), n.values...)
	case compound:
		l, lb := renderNode(n.left)
		r, rb := renderNode(n.right)
		var text string
		if n.grouped {
			text = fmt.Sprintf("(%s) %s (%s)", l, n.conj, r)
		} else {
			text = fmt.Sprintf("%s %s %s", l, n.conj, r)
		}
		return text, append(lb, rb...)
	}
	panic(fmt.Sprintf("rowstore: unknown predicate node %T", n))
}

func orderBySQL(sorts []sortKey) string {
	keys := make([]string, len(sorts))
	for i, s := range sorts {
		keys[i] = quoteIdent(s.column) + " " + s.direction.sql()
	}
	return "ORDER BY " + strings.Join(keys, ", ")
}

// statement is SQL text with its bindings.
type statement struct {
	query    string
	bindings []Value
}

func (s statement) args() []any { return args(s.bindings) }

func withClause(prefix string, q Lowered) statement {
	if c := q.Clause(); c != "" {
		prefix += " " + c
	}
	return statement{query: prefix + ";", bindings: q.Bindings}
}

func selectSQL(table string, q Lowered) statement {
	return withClause("SELECT * FROM "+quoteIdent(table), q)
}

func countSQL(table string, q Lowered) statement {
	return withClause("SELECT COUNT(*) FROM "+quoteIdent(table), q)
}

func distinctSQL(table, column string, q Lowered) statement {
	return withClause(fmt.Sprintf("SELECT DISTINCT %s FROM %s", quoteIdent(column), quoteIdent(table)), q)
}

func distinctCountSQL(table, column string, q Lowered) statement {
	return withClause(fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", quoteIdent(column), quoteIdent(table)), q)
}

// targetRows limits a DELETE or UPDATE to the rows selected by q. SQLite only
// accepts ORDER BY and LIMIT on those statements when built with
// SQLITE_ENABLE_UPDATE_DELETE_LIMIT, so sorted or limited filters select
// their target rowids through a subquery instead.
func targetRows(table string, q Lowered) Lowered {
	if q.OrderBy == "" && q.Limit == "" {
		return q
	}
	inner := withClause("SELECT rowid FROM "+quoteIdent(table), q)
	return Lowered{
		Where:    "WHERE rowid IN (" + strings.TrimSuffix(inner.query, ";") + ")",
		Bindings: q.Bindings,
	}
}

func deleteSQL(table string, q Lowered) statement {
	return withClause("DELETE FROM "+quoteIdent(table), targetRows(table, q))
}

func replaceSQL(table string, pairs []Pair) statement {
	cols := make([]string, len(pairs))
	vals := make([]Value, len(pairs))
	for i, p := range pairs {
		cols[i] = quoteIdent(p.Column)
		vals[i] = p.Value
	}
	return statement{
		query: fmt.Sprintf("REPLACE INTO %s (%s) VALUES (%s);",
			quoteIdent(table), strings.Join(cols, ", "), placeholders(len(pairs))),
		bindings: vals,
	}
}

func updateSQL(table string, set []Pair, q Lowered) statement {
	assignments := make([]string, len(set))
	var bindings []Value
	for i, p := range set {
		assignments[i] = quoteIdent(p.Column) + " = ?"
		bindings = append(bindings, p.Value)
	}
	st := withClause(fmt.Sprintf("UPDATE %s SET %s", quoteIdent(table), strings.Join(assignments, ", ")), targetRows(table, q))
	st.bindings = append(bindings, st.bindings...)
	return st
}
