package cli

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dir01/rowstore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB      string
	Config  string
	Driver  string
	Verbose bool
}

// NewRootCommand creates the root command for the rowstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rowstore",
		Short: "Inspect rowstore databases",
		Long:  "Inspect the tables of a rowstore SQLite database and edit its key-value storage.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Verbose {
				log.SetLevel(log.DebugLevel)
			}
			if opts.DB == "" && opts.Config == "" {
				return errors.New("one of --db or --config is required")
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database file path")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "SQLite driver (sqlite3|sqlite)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewKVCommand(opts))

	return cmd
}

// config resolves the database config: the config file if given, then the
// defaults, with flags taking precedence over both.
func (o *RootOptions) config() (rowstore.Config, error) {
	cfg := rowstore.DefaultConfig(o.DB)
	if o.Config != "" {
		loaded, err := rowstore.LoadConfig(o.Config)
		if err != nil {
			return rowstore.Config{}, err
		}
		cfg = loaded
		if o.DB != "" {
			cfg.Path = o.DB
		}
	}
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	return cfg, nil
}

// open opens the database. Read-only handles require the file to exist.
func (o *RootOptions) open(ctx context.Context, readOnly bool) (*rowstore.DB, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	cfg.ReadOnly = cfg.ReadOnly || readOnly
	l := log.WithField("cmd", "rowstore")
	return rowstore.Open(ctx, cfg, rowstore.WithLogger(l))
}
