// Command usertoken provisions users and prints bearer tokens for the API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"paperbrain/internal/app"
	"paperbrain/internal/bootstrap"
	"paperbrain/internal/config"
)

var (
	email       string
	displayName string
)

var rootCmd = &cobra.Command{
	Use:           "usertoken",
	Short:         "Provision users and issue API tokens",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a user and print its token",
	RunE:  runRegister,
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Print a fresh token for an existing user",
	RunE:  runIssue,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&email, "email", "e", "", "user email")
	_ = rootCmd.MarkPersistentFlagRequired("email")
	registerCmd.Flags().StringVarP(&displayName, "name", "n", "", "display name (defaults to the email local part)")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(issueCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runRegister(cmd *cobra.Command, _ []string) error {
	return withAuth(cmd.Context(), func(ctx context.Context, auth *app.AuthService) (*app.AuthResult, error) {
		result, err := auth.Register(ctx, app.RegisterInput{Email: email, DisplayName: displayName})
		if errors.Is(err, app.ErrEmailExists) {
			return nil, fmt.Errorf("%s is already registered, use \"usertoken issue\"", email)
		}
		return result, err
	})
}

func runIssue(cmd *cobra.Command, _ []string) error {
	return withAuth(cmd.Context(), func(ctx context.Context, auth *app.AuthService) (*app.AuthResult, error) {
		result, err := auth.Login(ctx, email)
		if errors.Is(err, app.ErrUnauthenticated) {
			return nil, fmt.Errorf("no user registered as %s", email)
		}
		return result, err
	})
}

func withAuth(ctx context.Context, fn func(context.Context, *app.AuthService) (*app.AuthResult, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	result, err := fn(ctx, bootstrap.NewAuth(cfg, db))
	if err != nil {
		return err
	}
	fmt.Printf("user:  %s <%s>\n", result.User.ID, result.User.Email)
	fmt.Printf("token: %s\n", result.Token)
	return nil
}
