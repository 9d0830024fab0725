package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/google"
	"github.com/mailfold/mailfold/internal/logging"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize mailfold for a Google account",
		Long: `Walk through the OAuth flow and cache a token for an account. The token
grants the gmail.modify scope only: label management and message label
changes, no sending and no permanent deletion.

Accounts are independent; authorize each one you want mailfold to
reach, e.g. --account work and --account personal.

Set MAILFOLD_GOOGLE_CLIENT_ID and MAILFOLD_GOOGLE_CLIENT_SECRET to use
your own OAuth client instead of the built-in one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(false)
			if err := google.MigrateDefaultToken(); err != nil {
				logger.Warn("failed to migrate legacy token file", logging.Err(err))
			}

			fmt.Printf("Open this URL in your browser and authorize access:\n\n  %s\n\n", google.GetAuthURL())
			fmt.Print("Paste the authorization code: ")

			reader := bufio.NewReader(os.Stdin)
			code, readErr := reader.ReadString('\n')
			code = strings.TrimSpace(code)
			if code == "" {
				if readErr != nil {
					return fmt.Errorf("failed to read authorization code: %w", readErr)
				}
				return fmt.Errorf("no authorization code provided")
			}

			if err := google.SaveTokenForAccount(context.Background(), account, code); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Printf("Token cached for account %q.\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to authorize (default: 'default')")
	return cmd
}
