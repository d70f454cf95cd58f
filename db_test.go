package rowstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dir01/rowstore"
)

func TestDBTables(t *testing.T) {
	db := setupTestDB(t)
	ctx := t.Context()

	_, err := db.Table(ctx, "person")
	assert.True(t, errors.Is(err, rowstore.ErrNoSuchTable), "got %v", err)

	seedPeople(t, mustStore[Person](t, db))
	require.NoError(t, mustStore[Contact](t, db).Save(ctx, Contact{Key: "k"}))

	tables, err := db.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"contact", "person"}, tables)

	table, err := db.Table(ctx, "person")
	require.NoError(t, err)
	assert.Equal(t, personTable, table)

	require.NoError(t, db.DropTable(ctx, "contact"))
	require.NoError(t, db.DropTable(ctx, "contact"), "dropping a missing table is not an error")
	tables, err = db.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"person"}, tables)
}

func TestDeleteEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.db")
	db, err := rowstore.Open(t.Context(), rowstore.DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, db.KeyValueStorage().Store(t.Context(), "k", "v"))

	require.NoError(t, db.DeleteEverything())
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "%s still exists", p)
	}
}

func TestOpenReadOnlyRequiresFile(t *testing.T) {
	cfg := rowstore.DefaultConfig(filepath.Join(t.TempDir(), "missing.db"))
	cfg.ReadOnly = true
	_, err := rowstore.Open(t.Context(), cfg)
	assert.Error(t, err)
}
