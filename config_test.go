package rowstore_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dir01/rowstore"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rowstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("path: /var/lib/app.db\ndriver: sqlite\nbusy_timeout: 2s\n"), 0o600))

	cfg, err := rowstore.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, rowstore.Config{
		Path:        "/var/lib/app.db",
		Driver:      rowstore.DriverPureGo,
		BusyTimeout: 2 * time.Second,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
	}, cfg)
	require.NoError(t, cfg.Validate())

	t.Run("missing file", func(t *testing.T) {
		_, err := rowstore.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("busy_timeout: [1, 2]\n"), 0o600))
		_, err := rowstore.LoadConfig(bad)
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*rowstore.Config){
		"no path":        func(c *rowstore.Config) { c.Path = "" },
		"driver":         func(c *rowstore.Config) { c.Driver = "postgres" },
		"journal mode":   func(c *rowstore.Config) { c.JournalMode = "WAL; DROP TABLE x" },
		"synchronous":    func(c *rowstore.Config) { c.Synchronous = "SOMETIMES" },
		"negative delay": func(c *rowstore.Config) { c.BusyTimeout = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := rowstore.DefaultConfig("x.db")
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := rowstore.DefaultConfig("data/app.db")
	assert.Equal(t, "file:data/app.db?_txlock=immediate", cfg.DSN())

	cfg.ReadOnly = true
	assert.Equal(t, "file:data/app.db?_txlock=immediate&mode=ro", cfg.DSN())

	odd := rowstore.DefaultConfig("/srv/my data/what?#100%.db")
	assert.Equal(t, "file:/srv/my%20data/what%3F%23100%25.db?_txlock=immediate", odd.DSN())
}

func TestOpenEscapedPath(t *testing.T) {
	for _, driver := range []string{rowstore.DriverCGO, rowstore.DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "odd name?#50%.db")
			cfg := rowstore.DefaultConfig(path)
			cfg.Driver = driver
			db, err := rowstore.Open(t.Context(), cfg)
			require.NoError(t, err)
			require.NoError(t, db.KeyValueStorage().Store(t.Context(), "k", 1))
			require.NoError(t, db.Close())

			_, err = os.Stat(path)
			assert.NoError(t, err, "database file must be created under its literal name")
		})
	}
}
