package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/drivecache/drivecache/internal/account"
	"github.com/drivecache/drivecache/internal/autoupdate"
	"github.com/drivecache/drivecache/internal/cache"
	"github.com/drivecache/drivecache/internal/config"
	"github.com/drivecache/drivecache/internal/notify"
	"github.com/drivecache/drivecache/internal/transfer"
)

// newRunCmd returns the `drivecache run` command: the long-running agent
// that watches cached files and re-uploads local edits.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the auto-update agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd.Context())
		},
	}
}

func runAgent(parent context.Context) error {
	logger := buildLogger()
	ctx := shutdownContext(parent, logger)

	layout := cache.Layout{BaseDir: resolvedCfg.Cache.BaseDir}

	if resolvedCfg.Cache.CleanOnStart {
		autoupdate.RemoveCachedFiles(layout, logger)
	}

	accounts := account.NewStore(config.DefaultAccountsPath())

	cur, err := accounts.Current()
	if err != nil {
		return fmt.Errorf("no account configured, run `drivecache login` first: %w", err)
	}

	index, err := cache.OpenIndex(layout.IndexPath(), logger)
	if err != nil {
		return err
	}
	defer index.Close()

	watcher, err := autoupdate.NewFsWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}

	transfers := transfer.NewManager(resolvedCfg.Transfers.ParallelUploads, logger)

	mgr := autoupdate.New(autoupdate.Options{
		Watcher:   watcher,
		Resolver:  layout,
		Transfers: transfers,
		Sessions:  accounts,
		Index:     index,
		Quirks:    platformQuirks(),
		Notifier:  notify.LogNotifier{Logger: logger},
		Layout:    layout,
		Logger:    logger,
	})

	go logUpdates(ctx, mgr, logger)

	// Restore watches for files cached in a previous session.
	entries, err := index.ListAccount(ctx, cur)
	if err != nil {
		return err
	}

	logger.Info("agent starting",
		slog.String("account", cur.Key()),
		slog.String("base_dir", layout.BaseDir),
		slog.Int("cached_files", len(entries)),
	)

	go func() {
		for _, e := range entries {
			mgr.Watch(cur, e.RepoID, e.PathInRepo)
		}
	}()

	return mgr.Run(ctx)
}

// logUpdates drains the manager's FileUpdated announcements.
func logUpdates(ctx context.Context, mgr *autoupdate.Manager, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-mgr.Updates():
			logger.Info("file updated on server",
				slog.String("repo_id", u.RepoID), slog.String("path", u.PathInRepo))
		}
	}
}

// platformQuirks selects the quirk filter for this platform. Only macOS
// viewers are known to rewrite image and PDF files on open.
func platformQuirks() autoupdate.QuirkFilter {
	if runtime.GOOS == "darwin" {
		return autoupdate.NewOpenTracker()
	}

	return autoupdate.NoQuirks{}
}
