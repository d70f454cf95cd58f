package cli

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewKVCommand creates the kv command and its subcommands.
func NewKVCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write the key-value storage",
	}
	cmd.AddCommand(newKVGetCommand(rootOpts))
	cmd.AddCommand(newKVSetCommand(rootOpts))
	cmd.AddCommand(newKVRemoveCommand(rootOpts))
	cmd.AddCommand(newKVListCommand(rootOpts))
	return cmd
}

func newKVGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "get <key>",
		Short:        "Print the JSON stored under a key",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer db.Close()

			raw, ok, err := db.KeyValueStorage().Raw(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errors.Errorf("key %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
}

func newKVSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "set <key> <json>",
		Short:        "Store a JSON value under a key",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return errors.Errorf("value for key %q is not valid JSON", args[0])
			}
			db, err := rootOpts.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.KeyValueStorage().Store(cmd.Context(), args[0], json.RawMessage(args[1]))
		},
	}
}

func newKVRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "rm <key>",
		Short:        "Remove a key",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.KeyValueStorage().Remove(cmd.Context(), args[0])
		},
	}
}

func newKVListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "ls",
		Short:        "List the stored keys",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer db.Close()

			keys, err := db.KeyValueStorage().Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
