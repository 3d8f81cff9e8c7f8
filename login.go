package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drivecache/drivecache/internal/account"
	"github.com/drivecache/drivecache/internal/config"
)

// newLoginCmd returns the `drivecache login` command, which saves an
// account token and selects it as the current session.
func newLoginCmd() *cobra.Command {
	var (
		flagServer   string
		flagUsername string
		flagToken    string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an account and make it the current session",
		RunE: func(_ *cobra.Command, _ []string) error {
			server := flagServer
			if server == "" {
				server = resolvedCfg.Server.URL
			}

			if server == "" {
				return fmt.Errorf("no server: pass --server or set server.url in the config file")
			}

			if flagUsername == "" || flagToken == "" {
				return fmt.Errorf("--username and --token are required")
			}

			acct := account.Account{Server: server, Username: flagUsername, Token: flagToken}

			store := account.NewStore(config.DefaultAccountsPath())
			if err := store.SetCurrent(acct); err != nil {
				return err
			}

			fmt.Printf("Logged in as %s\n", acct.Key())

			return nil
		},
	}

	cmd.Flags().StringVar(&flagServer, "server", "", "repository server URL")
	cmd.Flags().StringVar(&flagUsername, "username", "", "account username")
	cmd.Flags().StringVar(&flagToken, "token", "", "API token")

	return cmd
}
