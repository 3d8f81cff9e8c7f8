package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/drivecache/drivecache/internal/account"
	"github.com/drivecache/drivecache/internal/autoupdate"
	"github.com/drivecache/drivecache/internal/cache"
	"github.com/drivecache/drivecache/internal/config"
)

// newLogoutCmd returns the `drivecache logout` command: forget the current
// account and remove its cached files. A running agent performs the same
// teardown itself on account switch; this command covers the agent-stopped
// case.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current account and remove cached files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return logout(cmd.Context())
		},
	}
}

func logout(ctx context.Context) error {
	logger := buildLogger()
	layout := cache.Layout{BaseDir: resolvedCfg.Cache.BaseDir}
	store := account.NewStore(config.DefaultAccountsPath())

	cur, err := store.Current()
	if errors.Is(err, account.ErrNoCurrentAccount) {
		fmt.Println("No current account.")
	} else if err != nil {
		return err
	} else {
		// Drop this account's index rows before the store file itself goes;
		// other accounts' rows survive if disk removal fails partway.
		index, err := cache.OpenIndex(layout.IndexPath(), logger)
		if err == nil {
			if cerr := index.ClearAccount(ctx, cur); cerr != nil {
				logger.Warn("failed to clear cache index", slog.String("error", cerr.Error()))
			}
			index.Close()
		}

		if err := store.Remove(cur); err != nil {
			return err
		}

		fmt.Printf("Logged out %s\n", cur.Key())
	}

	autoupdate.RemoveCachedFiles(layout, logger)

	return nil
}
