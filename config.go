package rowstore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Registered driver names.
const (
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPureGo is modernc.org/sqlite.
	DriverPureGo = "sqlite"
)

var (
	journalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	syncModes    = []string{"OFF", "NORMAL", "FULL", "EXTRA"}
)

// Config describes how to open a database file.
type Config struct {
	Path        string        `yaml:"path"`
	Driver      string        `yaml:"driver"`
	ReadOnly    bool          `yaml:"read_only"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	JournalMode string        `yaml:"journal_mode"`
	Synchronous string        `yaml:"synchronous"`
}

// DefaultConfig returns the configuration used when none is given: the cgo
// driver, WAL journaling, NORMAL synchronous mode and a 5s busy timeout.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		Driver:      DriverCGO,
		BusyTimeout: 5 * time.Second,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
	}
}

// LoadConfig reads a YAML config file. Keys it omits keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// Validate checks the config. Pragma values cannot be bound as parameters,
// so they are restricted to the names the engine accepts.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("config: path is required")
	}
	if c.Driver != DriverCGO && c.Driver != DriverPureGo {
		return errors.Errorf("config: unknown driver %q", c.Driver)
	}
	if c.JournalMode != "" && !slices.Contains(journalModes, strings.ToUpper(c.JournalMode)) {
		return errors.Errorf("config: unknown journal_mode %q", c.JournalMode)
	}
	if c.Synchronous != "" && !slices.Contains(syncModes, strings.ToUpper(c.Synchronous)) {
		return errors.Errorf("config: unknown synchronous mode %q", c.Synchronous)
	}
	if c.BusyTimeout < 0 {
		return errors.New("config: busy_timeout must not be negative")
	}
	return nil
}

// DSN is the file URI passed to the driver. Path segments are escaped, so
// names containing "?", "#" or "%" reach the engine intact. Transactions
// begin IMMEDIATE, and read-only configs open the file with mode=ro.
func (c Config) DSN() string {
	segments := strings.Split(filepath.ToSlash(c.Path), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	q := url.Values{}
	q.Set("_txlock", "immediate")
	if c.ReadOnly {
		q.Set("mode", "ro")
	}
	return fmt.Sprintf("file:%s?%s", strings.Join(segments, "/"), q.Encode())
}

func (c Config) pragmas() []string {
	var out []string
	if c.BusyTimeout > 0 {
		out = append(out, fmt.Sprintf("PRAGMA busy_timeout = %d;", c.BusyTimeout.Milliseconds()))
	}
	if c.JournalMode != "" && !c.ReadOnly {
		out = append(out, fmt.Sprintf("PRAGMA journal_mode = %s;", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		out = append(out, fmt.Sprintf("PRAGMA synchronous = %s;", strings.ToUpper(c.Synchronous)))
	}
	return out
}
