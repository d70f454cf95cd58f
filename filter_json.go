package rowstore

import (
	"encoding/json"
	"slices"

	"github.com/pkg/errors"
)

var operators = []Operator{
	OpIs, OpIsNot, OpIn, OpNotIn, OpGreater, OpLess, OpBetween, OpNotBetween,
	OpLike, OpGlob, OpRegexp, OpMatch,
}

// jsonNode is the persisted form of a predicate node. Leaves set Column and
// Op; compounds set Left, Right and Conj.
type jsonNode struct {
	Column  string      `json:"column,omitempty"`
	Op      Operator    `json:"op,omitempty"`
	Values  values      `json:"values,omitempty"`
	Method  matchMethod `json:"method,omitempty"`
	Left    *jsonNode   `json:"left,omitempty"`
	Right   *jsonNode   `json:"right,omitempty"`
	Conj    Conjunction `json:"conj,omitempty"`
	Grouped bool        `json:"grouped,omitempty"`
}

type jsonSort struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

type jsonLimit struct {
	Count int `json:"count"`
	Page  int `json:"page"`
}

type jsonFilter struct {
	Where *jsonNode  `json:"where,omitempty"`
	Sort  []jsonSort `json:"sort,omitempty"`
	Limit *jsonLimit `json:"limit,omitempty"`
}

// MarshalJSON encodes the predicate tree, sort chain and limit. Decoding the
// result yields a filter that lowers to the same statement.
func (f Filter[T]) MarshalJSON() ([]byte, error) {
	var jf jsonFilter
	if f.where != nil {
		jf.Where = encodeNode(f.where)
	}
	for _, s := range f.sorts {
		jf.Sort = append(jf.Sort, jsonSort{Column: s.column, Direction: s.direction.sql()})
	}
	if f.limit != nil {
		jf.Limit = &jsonLimit{Count: f.limit.Count, Page: f.limit.Page}
	}
	return json.Marshal(jf)
}

// UnmarshalJSON decodes a filter encoded by MarshalJSON.
func (f *Filter[T]) UnmarshalJSON(data []byte) error {
	var jf jsonFilter
	if err := json.Unmarshal(data, &jf); err != nil {
		return err
	}
	out := Filter[T]{}
	if jf.Where != nil {
		n, err := decodeNode(jf.Where)
		if err != nil {
			return errors.WithMessage(err, "decoding filter")
		}
		out.where = n
	}
	for _, s := range jf.Sort {
		var dir Direction
		switch s.Direction {
		case "ASC":
			dir = Ascending
		case "DESC":
			dir = Descending
		default:
			return errors.Errorf("decoding filter: unknown sort direction %q", s.Direction)
		}
		out.sorts = append(out.sorts, sortKey{column: s.Column, direction: dir})
	}
	if jf.Limit != nil {
		out.limit = &Limit{Count: jf.Limit.Count, Page: jf.Limit.Page}
	}
	*f = out
	return nil
}

func encodeNode(n node) *jsonNode {
	switch n := n.(type) {
	case leaf:
		return &jsonNode{Column: n.column, Op: n.op, Values: values(n.values), Method: n.method}
	case compound:
		return &jsonNode{Left: encodeNode(n.left), Right: encodeNode(n.right), Conj: n.conj, Grouped: n.grouped}
	}
	return nil
}

func decodeNode(j *jsonNode) (node, error) {
	if j.Left != nil || j.Right != nil {
		if j.Left == nil || j.Right == nil {
			return nil, errors.New("compound node needs both sides")
		}
		if j.Conj != And && j.Conj != Or {
			return nil, errors.Errorf("unknown conjunction %q", j.Conj)
		}
		l, err := decodeNode(j.Left)
		if err != nil {
			return nil, err
		}
		r, err := decodeNode(j.Right)
		if err != nil {
			return nil, err
		}
		return compound{left: l, right: r, conj: j.Conj, grouped: j.Grouped}, nil
	}
	if j.Column == "" {
		return nil, errors.New("condition without a column")
	}
	if !slices.Contains(operators, j.Op) {
		return nil, errors.Errorf("unknown operator %q", j.Op)
	}
	want := 1
	switch j.Op {
	case OpBetween, OpNotBetween:
		want = 2
	case OpIn, OpNotIn:
		want = len(j.Values)
	}
	if len(j.Values) != want {
		return nil, errors.Errorf("operator %s takes %d values, got %d", j.Op, want, len(j.Values))
	}
	return leaf{column: j.Column, op: j.Op, values: []Value(j.Values), method: j.Method}, nil
}

type jsonAssignment struct {
	Column string          `json:"column"`
	Value  json.RawMessage `json:"value"`
	Type   string          `json:"type"`
}

type jsonUpdate struct {
	Where json.RawMessage  `json:"filter,omitempty"`
	ID    json.RawMessage  `json:"id,omitempty"`
	Set   []jsonAssignment `json:"set"`
}

// MarshalJSON encodes the assignments together with either the primary key
// or the filter they apply to.
func (u Update[T]) MarshalJSON() ([]byte, error) {
	ju := jsonUpdate{Set: make([]jsonAssignment, len(u.set))}
	for i, a := range u.set {
		v, err := marshalValue(a.value)
		if err != nil {
			return nil, errors.WithMessagef(err, "encoding assignment to %s", a.column)
		}
		ju.Set[i] = jsonAssignment{Column: a.column, Value: v, Type: a.colType.DDL()}
	}
	var err error
	if u.id != nil {
		ju.ID, err = marshalValue(u.id)
	} else {
		ju.Where, err = json.Marshal(u.filter)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "encoding update")
	}
	return json.Marshal(ju)
}

// UnmarshalJSON decodes an update encoded by MarshalJSON.
func (u *Update[T]) UnmarshalJSON(data []byte) error {
	var ju jsonUpdate
	if err := json.Unmarshal(data, &ju); err != nil {
		return err
	}
	out := Update[T]{}
	if len(ju.ID) != 0 {
		id, err := unmarshalValue(ju.ID)
		if err != nil {
			return errors.WithMessage(err, "decoding update key")
		}
		out.id = id
	} else if len(ju.Where) != 0 {
		if err := json.Unmarshal(ju.Where, &out.filter); err != nil {
			return errors.WithMessage(err, "decoding update filter")
		}
	}
	for _, a := range ju.Set {
		if a.Column == "" {
			return errors.New("decoding update: assignment without a column")
		}
		v, err := unmarshalValue(a.Value)
		if err != nil {
			return errors.WithMessagef(err, "decoding assignment to %s", a.Column)
		}
		out.set = append(out.set, Assignment[T]{column: a.Column, value: v, colType: ParseColumnType(a.Type)})
	}
	*u = out
	return nil
}
