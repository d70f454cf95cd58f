package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "tables",
		Short:        "List the tables of the database",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer db.Close()

			names, err := db.Tables(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "schema <table>",
		Short:        "Print the live schema of a table as YAML",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer db.Close()

			table, err := db.Table(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(table); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
