package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configFlag string
	var migrationsFlag string

	ctx := newCommandContext(&configFlag, &migrationsFlag)

	rootCmd := &cobra.Command{
		Use:           "m3ueditor",
		Short:         "IPTV playlist and EPG editor backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "YAML config file; environment variables are used when empty")
	rootCmd.PersistentFlags().StringVar(&migrationsFlag, "migrations", "", "Migrations directory (default: ./migrations or next to the binary)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newUserCommand(ctx))

	return rootCmd
}
