package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/auth"
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var (
		token     string
		userID    string
		role      string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token for the configured backend",
		Long: "Store an access token for the configured backend.\n\n" +
			"The token is read from --token or, when omitted, from the first line of stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}

			if token == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no token given: pass --token or pipe it on stdin")
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New("token must not be empty")
			}
			switch role {
			case "", "patient", "specialist":
			default:
				return fmt.Errorf("role must be patient or specialist (got %q)", role)
			}

			creds := &auth.Credentials{AccessToken: token, UserID: userID, Role: role}
			if expiresIn > 0 {
				creds.ExpiresAt = time.Now().Add(expiresIn).Unix()
			}
			if err := a.store.Save(creds); err != nil {
				return fmt.Errorf("save credentials: %w", err)
			}
			a.guard.Reset()

			fmt.Fprintf(a.out, "Signed in to %s\n", a.cfg.Origin())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token")
	cmd.Flags().StringVar(&userID, "user-id", "", "User ID (scopes the cache)")
	cmd.Flags().StringVar(&role, "role", "specialist", "Account role: patient or specialist")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Token lifetime (0 = no expiry)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := a.store.Delete(); err != nil {
				return fmt.Errorf("delete credentials: %w", err)
			}
			fmt.Fprintf(a.out, "Signed out of %s\n", a.cfg.Origin())
			return nil
		},
	}
}
