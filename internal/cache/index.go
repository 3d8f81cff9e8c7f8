package cache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/drivecache/drivecache/internal/account"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one row of the cache index: a remote file that has a local
// cached copy.
type Entry struct {
	AccountKey string
	RepoID     string
	PathInRepo string
	LocalPath  string
	CachedAt   time.Time
}

// Index is the cache metadata store, an embedded SQLite database living at
// Layout.IndexPath. It records which remote files are cached and for which
// account, so that watches can be restored on startup and teardown can drop
// exactly one account's rows.
type Index struct {
	db     *sql.DB
	logger *slog.Logger

	record, remove, clearAccount *sql.Stmt
	listAccount                  *sql.Stmt
}

// OpenIndex opens (creating if needed) the cache index at dbPath and applies
// pending schema migrations. Use ":memory:" in tests.
func OpenIndex(dbPath string, logger *slog.Logger) (*Index, error) {
	logger.Info("opening cache index", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}

	// Single writer; avoids SQLITE_BUSY from connection-pool interleaving.
	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	idx := &Index{db: db, logger: logger}
	if err := idx.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: prepare statements: %w", err)
	}

	return idx, nil
}

// setPragmas enables WAL mode and normal synchronous writes, matching the
// durability needs of an index that can always be rebuilt from the server.
func setPragmas(ctx context.Context, db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("cache: %s: %w", pragma, err)
		}
	}

	return nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("cache: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("cache: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("cache: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied cache index migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (i *Index) prepareStatements(ctx context.Context) error {
	var err error

	if i.record, err = i.db.PrepareContext(ctx, `
		INSERT INTO cached_files (account_key, repo_id, path_in_repo, local_path, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, path_in_repo) DO UPDATE SET
			account_key = excluded.account_key,
			local_path  = excluded.local_path,
			cached_at   = excluded.cached_at`); err != nil {
		return err
	}

	if i.remove, err = i.db.PrepareContext(ctx, `
		DELETE FROM cached_files WHERE repo_id = ? AND path_in_repo = ?`); err != nil {
		return err
	}

	if i.clearAccount, err = i.db.PrepareContext(ctx, `
		DELETE FROM cached_files WHERE account_key = ?`); err != nil {
		return err
	}

	if i.listAccount, err = i.db.PrepareContext(ctx, `
		SELECT account_key, repo_id, path_in_repo, local_path, cached_at
		FROM cached_files WHERE account_key = ? ORDER BY cached_at`); err != nil {
		return err
	}

	return nil
}

// Record upserts an entry for a newly cached (or re-cached) remote file.
func (i *Index) Record(ctx context.Context, e Entry) error {
	_, err := i.record.ExecContext(ctx,
		e.AccountKey, e.RepoID, e.PathInRepo, e.LocalPath, e.CachedAt.Unix())
	if err != nil {
		return fmt.Errorf("cache: recording %s:%s: %w", e.RepoID, e.PathInRepo, err)
	}

	return nil
}

// Remove deletes the entry for one remote file, if present.
func (i *Index) Remove(ctx context.Context, repoID, pathInRepo string) error {
	if _, err := i.remove.ExecContext(ctx, repoID, pathInRepo); err != nil {
		return fmt.Errorf("cache: removing %s:%s: %w", repoID, pathInRepo, err)
	}

	return nil
}

// ClearAccount deletes every entry belonging to the account. Used by cache
// teardown bookkeeping before the on-disk tree is removed.
func (i *Index) ClearAccount(ctx context.Context, a account.Account) error {
	res, err := i.clearAccount.ExecContext(ctx, a.Key())
	if err != nil {
		return fmt.Errorf("cache: clearing account %s: %w", a.Key(), err)
	}

	if n, err := res.RowsAffected(); err == nil {
		i.logger.Debug("cleared cache index rows",
			slog.String("account", a.Key()), slog.Int64("rows", n))
	}

	return nil
}

// ListAccount returns all entries for one account in caching order.
func (i *Index) ListAccount(ctx context.Context, a account.Account) ([]Entry, error) {
	rows, err := i.listAccount.QueryContext(ctx, a.Key())
	if err != nil {
		return nil, fmt.Errorf("cache: listing account %s: %w", a.Key(), err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var e Entry
		var cachedAt int64

		if err := rows.Scan(&e.AccountKey, &e.RepoID, &e.PathInRepo, &e.LocalPath, &cachedAt); err != nil {
			return nil, fmt.Errorf("cache: scanning entry: %w", err)
		}

		e.CachedAt = time.Unix(cachedAt, 0)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: iterating entries: %w", err)
	}

	return entries, nil
}

// Close releases prepared statements and the underlying database.
func (i *Index) Close() error {
	for _, stmt := range []*sql.Stmt{i.record, i.remove, i.clearAccount, i.listAccount} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return i.db.Close()
}
