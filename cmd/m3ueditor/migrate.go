package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voyagen/m3ueditor/internal/store"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrateCmd.AddCommand(newMigrateUpCommand(ctx))
	migrateCmd.AddCommand(newMigrateDownCommand(ctx))
	migrateCmd.AddCommand(newMigrateVersionCommand(ctx))
	return migrateCmd
}

func newMigrateUpCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := store.RunMigrations(cfg.DatabaseURL, ctx.migrationsURL()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newMigrateDownCommand(ctx *commandContext) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := store.RollbackMigrations(cfg.DatabaseURL, ctx.migrationsURL(), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	return cmd
}

func newMigrateVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			v, dirty, err := store.MigrationVersion(cfg.DatabaseURL, ctx.migrationsURL())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dirty {
				fmt.Fprintf(out, "%d (dirty)\n", v)
				return nil
			}
			fmt.Fprintln(out, v)
			return nil
		},
	}
}
