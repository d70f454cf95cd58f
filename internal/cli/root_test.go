package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "rowstore", cmd.Use)

	expected := []string{"tables", "schema", "kv"}
	for _, name := range expected {
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "expected subcommand %q not found", name)
	}

	for _, flag := range []string{"db", "config", "driver", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "expected flag --%s", flag)
	}
}

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRequiresDatabase(t *testing.T) {
	_, err := run(t, "tables")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db")
}

func TestKVCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	_, err := run(t, "--db", db, "kv", "set", "theme", `{"name": "dark"}`)
	require.NoError(t, err)
	_, err = run(t, "--db", db, "kv", "set", "size", "12")
	require.NoError(t, err)

	_, err = run(t, "--db", db, "kv", "set", "broken", "{nope")
	assert.Error(t, err)

	out, err := run(t, "--db", db, "kv", "get", "theme")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"dark"}`, out)

	out, err = run(t, "--db", db, "kv", "ls")
	require.NoError(t, err)
	assert.Equal(t, "size\ntheme\n", out)

	_, err = run(t, "--db", db, "kv", "rm", "size")
	require.NoError(t, err)
	_, err = run(t, "--db", db, "kv", "get", "size")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTablesAndSchema(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := run(t, "--db", db, "kv", "set", "k", `"v"`)
	require.NoError(t, err)

	out, err := run(t, "--db", db, "tables")
	require.NoError(t, err)
	assert.Equal(t, "__Key_Value_Storage__\n", out)

	out, err = run(t, "--db", db, "schema", "__Key_Value_Storage__")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"table: __Key_Value_Storage__",
		"columns:",
		"  - name: id",
		"    type: TEXT",
		"    primary_key: true",
		"  - name: data",
		"    type: BLOB",
		"",
	}, "\n"), out)

	_, err = run(t, "--db", db, "schema", "missing")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rowstore.yaml")
	dbPath := filepath.Join(dir, "from-config.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("path: "+dbPath+"\ndriver: sqlite\n"), 0o600))

	_, err := run(t, "--config", cfgPath, "kv", "set", "k", "1")
	require.NoError(t, err)
	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "config path must be used")

	opts := RootOptions{Config: cfgPath, DB: filepath.Join(dir, "override.db"), Driver: "sqlite3"}
	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, opts.DB, cfg.Path)
	assert.Equal(t, "sqlite3", cfg.Driver)
}
