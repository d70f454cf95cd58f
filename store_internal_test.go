package rowstore

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type member struct {
	ID   string `rowstore:"id,pk"`
	Name string `rowstore:"name"`
	Age  int    `rowstore:"age"`
	Team string `rowstore:"team"`
}

func (member) TableName() string { return "member" }

var (
	memberName = NewField[member, string]("name")
	memberAge  = NewField[member, int]("age")
	memberTeam = NewField[member, string]("team")
)

func openMembers(t *testing.T) (*Store[member], *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	db, err := Open(t.Context(), DefaultConfig(filepath.Join(t.TempDir(), "members.db")), WithLogger(logrus.NewEntry(logger)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewStore[member](db)
	require.NoError(t, err)
	for _, m := range []member{{"1", "ann", 30, "red"}, {"2", "bob", 40, "blue"}, {"3", "cid", 50, "red"}} {
		require.NoError(t, s.Save(t.Context(), m))
	}
	// The member table has every column, so the schema check keeps the whole
	// filter; "bare" lacks them and makes the engine reject each one.
	_, err = db.exec(t.Context(), opDDL, statement{query: `CREATE TABLE "bare" ("id" TEXT PRIMARY KEY NOT NULL);`})
	require.NoError(t, err)
	_, err = db.exec(t.Context(), opDDL, statement{query: `INSERT INTO "bare" ("id") VALUES ('1'), ('2'), ('3');`})
	require.NoError(t, err)

	hook.Reset()
	return s, hook
}

// unquoted selects from "bare" with bare column names. Unknown quoted names
// would be read as string literals and never reported.
func unquoted(q Lowered) statement {
	return withClause(`SELECT * FROM "bare"`, Lowered{
		Where:    strings.ReplaceAll(q.Where, `"`, ""),
		OrderBy:  strings.ReplaceAll(q.OrderBy, `"`, ""),
		Limit:    q.Limit,
		Bindings: q.Bindings,
	})
}

func prunedReasons(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Message == "dropping filter column" {
			out = append(out, e.Data["column"].(string)+": "+e.Data["reason"].(string))
		}
	}
	return out
}

func TestQueryPrunedEngineRetries(t *testing.T) {
	s, hook := openMembers(t)
	ctx := t.Context()

	t.Run("drops each rejected column once", func(t *testing.T) {
		hook.Reset()
		f := Where(memberName.Is(Equal("ann"))).
			And(memberAge.Is(Greater(10))).
			SortBy(memberTeam, Ascending)

		var attempts []Lowered
		_, rs, err := s.queryPruned(ctx, opSelect, f, func(q Lowered) statement {
			attempts = append(attempts, q)
			return unquoted(q)
		})
		require.NoError(t, err)
		rows, err := scanRows(rs)
		require.NoError(t, err)
		assert.Len(t, rows, 3)

		assert.Equal(t, []string{
			"name: rejected by engine",
			"age: rejected by engine",
			"team: rejected by engine",
		}, prunedReasons(hook))
		require.Len(t, attempts, 4)
		assert.LessOrEqual(t, len(attempts)-1, len(f.Columns()))
		last := attempts[len(attempts)-1]
		assert.Empty(t, last.Where)
		assert.Empty(t, last.OrderBy)
	})

	t.Run("falls back to no predicate when rejections repeat", func(t *testing.T) {
		hook.Reset()
		f := Where(memberName.Is(Equal("ann"))).
			Or(memberTeam.Is(Equal("red"))).
			Limit(2, 0)

		var attempts []Lowered
		_, rs, err := s.queryPruned(ctx, opSelect, f, func(q Lowered) statement {
			attempts = append(attempts, q)
			if q.Where == "" && q.OrderBy == "" {
				return unquoted(q)
			}
			// Always rejects a column the filter does not reference.
			return statement{query: `SELECT * FROM "bare" WHERE ghost = 1;`}
		})
		require.NoError(t, err)
		rows, err := scanRows(rs)
		require.NoError(t, err)
		assert.Len(t, rows, 2, "the limit survives the fallback")

		assert.Equal(t, []string{"ghost: retries exhausted, dropping all conditions"}, prunedReasons(hook))
		require.Len(t, attempts, 2)
		last := attempts[1]
		assert.Empty(t, last.Where)
		assert.Empty(t, last.OrderBy)
		assert.Equal(t, "LIMIT ?", last.Limit)
	})

	t.Run("other errors are returned as they are", func(t *testing.T) {
		_, _, err := s.queryPruned(ctx, opSelect, All[member](), func(q Lowered) statement {
			return statement{query: `SELEC * FROM "bare";`}
		})
		assert.ErrorIs(t, err, ErrSyntax)
	})
}
