package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/reelforge-api/internal/database"
)

func newMigrateCommand(a *app) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *database.DB) error {
				return db.RunMigrations(a.cfg.MigrationsPath, a.log)
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("steps must be a number: %w", err)
				}
				steps = n
			}
			return a.withDB(func(db *database.DB) error {
				return db.RollbackMigrations(a.cfg.MigrationsPath, steps, a.log)
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *database.DB) error {
				version, dirty, err := db.MigrationVersion(a.cfg.MigrationsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})

	return migrateCmd
}

func (a *app) withDB(fn func(db *database.DB) error) error {
	db, err := database.New(a.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	return fn(db)
}
