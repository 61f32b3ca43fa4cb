package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/switchboard/internal/config"
	"github.com/rafaeljc/switchboard/internal/database"
	"github.com/rafaeljc/switchboard/internal/loader"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
	"github.com/rafaeljc/switchboard/internal/store"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <file>",
		Short: "Replace the rules stored in PostgreSQL with a validated file",
		Long: `Validate a rules file and replace every criterion, group and rule stored
in PostgreSQL with it. The syncer publishes the change to the data planes.
The database is configured with the SWITCHBOARD_DB_* environment variables.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			// Never store what the syncer would refuse to publish.
			if _, err := ruleengine.Build(def); err != nil {
				return &invalidRulesError{path: args[0], err: err}
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			pool, err := database.NewPostgresPool(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			rev, err := store.NewPostgresStore(pool).SaveDefinition(cmd.Context(), def)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"revision": rev})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: stored as revision %d\n", args[0], rev)
			return nil
		},
	}
}
