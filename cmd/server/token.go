package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/reelforge-api/internal/middleware"
)

// newTokenCommand mints a JWT signed with JWT_SECRET. Production tokens
// come from the identity provider; this is for local development and
// smoke tests.
func newTokenCommand(a *app) *cobra.Command {
	var (
		userID string
		email  string
		admin  bool
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.GinMode == "release" {
				return fmt.Errorf("token: refusing to mint tokens in release mode")
			}
			role := ""
			if admin {
				role = middleware.RoleAdmin
			}
			token, err := middleware.GenerateJWT(userID, email, role, a.cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id to put in the token")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the admin role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
