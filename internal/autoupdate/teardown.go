package autoupdate

import (
	"context"
	"log/slog"
	"os"

	"github.com/drivecache/drivecache/internal/cache"
)

// CleanCache tears down the current account's cache: synchronously cancels
// in-flight downloads, drops the account's watches, and clears its cache
// index rows, then removes the on-disk cache on a background goroutine so
// a large tree never stalls the event loop.
func (m *Manager) CleanCache(ctx context.Context) {
	m.do(func() {
		m.logger.Debug("cancel all download tasks")
		m.transfers.CancelAllDownloads()

		if m.sessions == nil {
			return
		}

		cur, err := m.sessions.Current()
		if err != nil {
			m.logger.Debug("no current account, skipping bookkeeping",
				slog.String("error", err.Error()))
			return
		}

		m.removeAllForAccount(cur)

		if m.index != nil {
			if err := m.index.ClearAccount(ctx, cur); err != nil {
				m.logger.Warn("failed to clear cache index",
					slog.String("error", err.Error()))
			}
		}
	})

	m.cleanWG.Add(1)

	go func() {
		defer m.cleanWG.Done()
		RemoveCachedFiles(m.layout, m.logger)
	}()
}

// RemoveCachedFiles removes the on-disk cache: the index database file, any
// leftover temp tree from an interrupted prior teardown, and the live cache
// tree. The live tree is renamed to the temp name before deletion so a
// crash mid-removal never leaves a partially deleted tree looking live;
// the next run finds only the known-temporary leftover and finishes the
// job. All errors are best-effort warnings.
func RemoveCachedFiles(layout cache.Layout, logger *slog.Logger) {
	logger.Debug("removing cached files", slog.String("base_dir", layout.BaseDir))

	dbPath := layout.IndexPath()
	if fileExists(dbPath) {
		if err := os.Remove(dbPath); err != nil {
			logger.Warn("failed to remove cache index file",
				slog.String("path", dbPath), slog.String("error", err.Error()))
		}
	}

	tmpDir := layout.TempDir()
	if fileExists(tmpDir) {
		if err := os.RemoveAll(tmpDir); err != nil {
			logger.Warn("failed to remove leftover cache temp dir",
				slog.String("path", tmpDir), slog.String("error", err.Error()))
		}
	}

	liveDir := layout.FileCacheDir()
	if !fileExists(liveDir) {
		return
	}

	if err := os.Rename(liveDir, tmpDir); err != nil {
		logger.Warn("failed to hide cache dir for removal",
			slog.String("path", liveDir), slog.String("error", err.Error()))
		return
	}

	if err := os.RemoveAll(tmpDir); err != nil {
		logger.Warn("failed to remove cache dir",
			slog.String("path", tmpDir), slog.String("error", err.Error()))
	}
}
