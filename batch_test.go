package rowstore_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dir01/rowstore"
)

func TestTransact(t *testing.T) {
	db := setupTestDB(t)
	ctx := t.Context()
	people := mustStore[Person](t, db)

	jen := newPerson("Jen", "Barber", 34)
	roy := newPerson("Roy", "Trenneman", 35)
	moss := newPerson("Maurice", "Moss", 32)

	t.Run("applies every action", func(t *testing.T) {
		b := rowstore.NewBatch(
			rowstore.SaveAll(jen, roy, moss),
			rowstore.DeleteAll(moss),
			rowstore.UpdateByID[Person](roy.ID).Set(PersonAge.To(36)),
		)
		require.NoError(t, db.Transact(ctx, b))

		got, err := people.Get(ctx, rowstore.All[Person]().SortBy(PersonFirst, rowstore.Ascending))
		require.NoError(t, err)
		assert.Equal(t, []string{"Jen", "Roy"}, firstNames(got))
		assert.Equal(t, 36, got[1].Age)
	})

	t.Run("rolls back on the first failure", func(t *testing.T) {
		ghost := rowstore.NewField[Person, string]("ghost")
		b := rowstore.NewBatch(rowstore.SaveAll(moss)).
			Add(rowstore.DeleteMatching(rowstore.Where(PersonFirst.Is(rowstore.Equal("Jen"))))).
			Add(rowstore.DeleteMatching(rowstore.Where(ghost.Is(rowstore.Equal("boo")))))

		err := db.Transact(ctx, b)
		assert.True(t, errors.Is(err, rowstore.ErrNoSuchColumn), "got %v", err)
		assert.Contains(t, err.Error(), "batch action 3")

		got, err := people.Get(ctx, rowstore.All[Person]().SortBy(PersonFirst, rowstore.Ascending))
		require.NoError(t, err)
		assert.Equal(t, []string{"Jen", "Roy"}, firstNames(got))
	})

	t.Run("rolls back created tables", func(t *testing.T) {
		fresh := setupTestDB(t)
		b := rowstore.NewBatch(
			rowstore.SaveAll(jen),
			rowstore.DeleteMatching(rowstore.Where(rowstore.NewField[Person, int]("ghost").Is(rowstore.Equal(1)))),
		)
		require.Error(t, fresh.Transact(ctx, b))

		tables, err := fresh.Tables(ctx)
		require.NoError(t, err)
		assert.Empty(t, tables)
	})
}

func TestBatchString(t *testing.T) {
	jen := newPerson("Jen", "Barber", 34)
	b := rowstore.NewBatch(rowstore.SaveAll(jen, jen), rowstore.DeleteAll(jen)).
		Add(rowstore.NewUpdate(rowstore.Where(PersonAge.Is(rowstore.Greater(30)))).Set(PersonLast.To("X")))

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, "Batch(3 actions)\n"+
		"1. save 2 person\n"+
		"2. delete 1 person\n"+
		"3. update person set last = 'X' matching Filter<person>: WHERE age IS GREATER THAN 30",
		b.String())
}
