package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voyagen/m3ueditor/internal/auth"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}
	userCmd.AddCommand(newUserCreateCommand(ctx))
	userCmd.AddCommand(newUserTokenCommand(ctx))
	return userCmd
}

func newUserCreateCommand(ctx *commandContext) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			if name == "" {
				name = email
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := store.RunMigrations(cfg.DatabaseURL, ctx.migrationsURL()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			pg, err := store.NewPostgres(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			defer pg.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			u := &models.User{Name: name, Email: email, PasswordHash: hash}
			if err := pg.CreateUser(cmd.Context(), u); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return fmt.Errorf("a user with email %q already exists", email)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the email)")
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Login password")
	return cmd
}

func newUserTokenCommand(ctx *commandContext) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("--email is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tok, err := tokens(cfg)
			if err != nil {
				return err
			}
			pg, err := store.NewPostgres(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			defer pg.Close()

			u, err := pg.GetUserByEmail(cmd.Context(), email)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no user with email %q", email)
				}
				return err
			}
			token, err := tok.Issue(u.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	return cmd
}
