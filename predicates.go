package rowstore

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Operator is the SQL operator of a single condition.
type Operator string

// Supported condition operators.
const (
	OpIs         Operator = "IS"
	OpIsNot      Operator = "IS NOT"
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT IN"
	OpGreater    Operator = ">"
	OpLess       Operator = "<"
	OpBetween    Operator = "BETWEEN"
	OpNotBetween Operator = "NOT BETWEEN"
	OpLike       Operator = "LIKE"
	OpGlob       Operator = "GLOB"
	OpRegexp     Operator = "REGEXP"
	OpMatch      Operator = "MATCH"
)

// Conjunction joins two predicate subtrees.
type Conjunction string

const (
	And Conjunction = "AND"
	Or  Conjunction = "OR"
)

// Ordered is the set of field types that support Greater, Less and Between.
type Ordered interface {
	cmp.Ordered | time.Time
}

// matchMethod records which string-equality helper built a LIKE condition.
// It only affects descriptions; the bound pattern already carries the wildcards.
type matchMethod string

const (
	matchExactly  matchMethod = "exactly"
	matchContains matchMethod = "contains"
	matchStarts   matchMethod = "starts"
	matchEnds     matchMethod = "ends"
)

// Rule is an operator with its literal operands, typed by the field it can
// be applied to.
type Rule[V any] struct {
	op     Operator
	values []Value
	method matchMethod
}

// Equal matches rows whose column IS the value. IS is null-safe.
func Equal[V any](v V) Rule[V] { return Rule[V]{op: OpIs, values: []Value{mustValue(v)}} }

// NotEqual matches rows whose column IS NOT the value.
func NotEqual[V any](v V) Rule[V] { return Rule[V]{op: OpIsNot, values: []Value{mustValue(v)}} }

// In matches rows whose column is one of the values.
func In[V any](vs ...V) Rule[V] { return Rule[V]{op: OpIn, values: valuesOf(vs)} }

// NotIn matches rows whose column is none of the values.
func NotIn[V any](vs ...V) Rule[V] { return Rule[V]{op: OpNotIn, values: valuesOf(vs)} }

// Greater matches rows whose column is greater than the value.
func Greater[V Ordered](v V) Rule[V] { return Rule[V]{op: OpGreater, values: []Value{mustValue(v)}} }

// Less matches rows whose column is less than the value.
func Less[V Ordered](v V) Rule[V] { return Rule[V]{op: OpLess, values: []Value{mustValue(v)}} }

// Between matches rows whose column lies in [a, b].
func Between[V Ordered](a, b V) Rule[V] {
	return Rule[V]{op: OpBetween, values: []Value{mustValue(a), mustValue(b)}}
}

// NotBetween matches rows whose column lies outside [a, b].
func NotBetween[V Ordered](a, b V) Rule[V] {
	return Rule[V]{op: OpNotBetween, values: []Value{mustValue(a), mustValue(b)}}
}

// Like matches a LIKE pattern.
func Like(pattern string) Rule[string] { return Rule[string]{op: OpLike, values: []Value{Text(pattern)}} }

// Glob matches a GLOB pattern.
func Glob(pattern string) Rule[string] { return Rule[string]{op: OpGlob, values: []Value{Text(pattern)}} }

// Regexp matches a regular expression. The engine must provide a regexp()
// function for the statement to run.
func Regexp(pattern string) Rule[string] {
	return Rule[string]{op: OpRegexp, values: []Value{Text(pattern)}}
}

// Match is a full-text MATCH.
func Match(query string) Rule[string] { return Rule[string]{op: OpMatch, values: []Value{Text(query)}} }

// Exactly matches the string using LIKE, so ASCII case is ignored.
func Exactly(s string) Rule[string] { return stringRule(matchExactly, s) }

// Contains matches strings containing s.
func Contains(s string) Rule[string] { return stringRule(matchContains, "%"+s+"%") }

// StartsWith matches strings with prefix s.
func StartsWith(s string) Rule[string] { return stringRule(matchStarts, s+"%") }

// EndsWith matches strings with suffix s.
func EndsWith(s string) Rule[string] { return stringRule(matchEnds, "%"+s) }

func stringRule(m matchMethod, pattern string) Rule[string] {
	return Rule[string]{op: OpLike, values: []Value{Text(pattern)}, method: m}
}

func valuesOf[V any](vs []V) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = mustValue(v)
	}
	return out
}

// mustValue converts a literal into a Value. Non-scalar literals are encoded
// the same way the Writer encodes non-scalar fields. A literal that can be
// neither is a programming error.
func mustValue(x any) Value {
	if v, err := ToValue(x); err == nil {
		return v
	}
	b, err := json.Marshal(x)
	if err != nil {
		panic(fmt.Sprintf("rowstore: cannot bind %T: %v", x, err))
	}
	return Blob(b)
}

// node is a predicate tree node: either a leaf or a compound.
type node interface {
	isNode()
}

// leaf is a single column-operator-operands condition.
type leaf struct {
	column string
	op     Operator
	values []Value
	method matchMethod
}

// compound joins two subtrees. Grouped compounds render each side in
// parentheses; ungrouped compounds rely on left-to-right evaluation.
type compound struct {
	left, right node
	conj        Conjunction
	grouped     bool
}

func (leaf) isNode()     {}
func (compound) isNode() {}

// join combines two optional subtrees.
func join(left node, conj Conjunction, right node, grouped bool) node {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return compound{left: left, right: right, conj: conj, grouped: grouped}
}

// prune removes every leaf on column, collapsing compounds left with one side.
func prune(n node, column string) node {
	switch n := n.(type) {
	case leaf:
		if n.column == column {
			return nil
		}
		return n
	case compound:
		return join(prune(n.left, column), n.conj, prune(n.right, column), n.grouped)
	}
	return nil
}

// walkLeaves visits leaves in the same pre-order used for rendering.
func walkLeaves(n node, fn func(leaf)) {
	switch n := n.(type) {
	case leaf:
		fn(n)
	case compound:
		walkLeaves(n.left, fn)
		walkLeaves(n.right, fn)
	}
}

// sql renders the leaf with one placeholder per operand.
func (l leaf) sql() string {
	col := quoteIdent(l.column)
	switch l.op {
	case OpIn, OpNotIn:
		return fmt.Sprintf("%s %s (%s)", col, l.op, placeholders(len(l.values)))
	case OpBetween, OpNotBetween:
		return fmt.Sprintf("%s %s ? AND ?", col, l.op)
	default:
		return fmt.Sprintf("%s %s ?", col, l.op)
	}
}

func (l leaf) describe() string {
	col := l.column
	formatted := make([]string, len(l.values))
	for i, v := range l.values {
		formatted[i] = FormatValue(v)
	}
	switch l.method {
	case matchExactly:
		return fmt.Sprintf("%s IS EXACTLY %s", col, formatted[0])
	case matchContains:
		return fmt.Sprintf("%s CONTAINS %s", col, unwildcard(l.values[0], true, true))
	case matchStarts:
		return fmt.Sprintf("%s STARTS WITH %s", col, unwildcard(l.values[0], false, true))
	case matchEnds:
		return fmt.Sprintf("%s ENDS WITH %s", col, unwildcard(l.values[0], true, false))
	}
	switch l.op {
	case OpIn:
		return fmt.Sprintf("%s IS IN (%s)", col, strings.Join(formatted, ", "))
	case OpNotIn:
		return fmt.Sprintf("%s IS NOT IN (%s)", col, strings.Join(formatted, ", "))
	case OpGreater:
		return fmt.Sprintf("%s IS GREATER THAN %s", col, formatted[0])
	case OpLess:
		return fmt.Sprintf("%s IS LESS THAN %s", col, formatted[0])
	case OpBetween:
		return fmt.Sprintf("%s IS BETWEEN %s AND %s", col, formatted[0], formatted[1])
	case OpNotBetween:
		return fmt.Sprintf("%s IS NOT BETWEEN %s AND %s", col, formatted[0], formatted[1])
	default:
		return fmt.Sprintf("%s %s %s", col, l.op, formatted[0])
	}
}

func unwildcard(v Value, prefix, suffix bool) string {
	s := string(v.(Text))
	if prefix {
		s = strings.TrimPrefix(s, "%")
	}
	if suffix {
		s = strings.TrimSuffix(s, "%")
	}
	return "'" + s + "'"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// quoteIdent wraps an identifier in double quotes. Surrounding quotes and
// spaces are trimmed first, so quoting is idempotent, and inner double quotes
// are replaced by single quotes rather than escaped.
func quoteIdent(name string) string {
	name = strings.Trim(name, `" `)
	name = strings.ReplaceAll(name, `"`, `'`)
	return `"` + name + `"`
}
