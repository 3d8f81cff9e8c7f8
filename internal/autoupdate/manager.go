package autoupdate

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/drivecache/drivecache/internal/account"
	"github.com/drivecache/drivecache/internal/cache"
	"github.com/drivecache/drivecache/internal/notify"
	"github.com/drivecache/drivecache/internal/transfer"
)

// recreateCheckDelay is how long after a watched file disappears the
// manager rechecks for recreation. Office suites that save via
// delete-and-recreate finish well inside this window.
const recreateCheckDelay = 5 * time.Second

// updatesBuffer sizes the FileUpdated subscriber channel.
const updatesBuffer = 16

// FileUpdated announces that a new version of a remote file was uploaded.
// External consumers (UI refresh, status views) subscribe via Updates.
type FileUpdated struct {
	RepoID     string
	PathInRepo string
}

// PathResolver maps a remote file to its local cache path.
type PathResolver interface {
	LocalPath(repoID, pathInRepo string) string
}

// Transfers is the slice of the transfer layer the manager drives: the
// upload-task factory plus teardown-time bulk download cancellation.
// *transfer.Manager satisfies it.
type Transfers interface {
	CreateUploadTask(acct account.Account, repoID, parentPath, localPath, fileName string, isUpdate bool) transfer.Task
	CancelAllDownloads()
}

// Sessions answers the current-account query at teardown time.
// *account.Store satisfies it.
type Sessions interface {
	Current() (account.Account, error)
}

// IndexCleaner clears one account's rows from the cache index during
// teardown bookkeeping. *cache.Index satisfies it.
type IndexCleaner interface {
	ClearAccount(ctx context.Context, a account.Account) error
}

// Options configures a Manager. Watcher, Resolver, Transfers, Notifier and
// Logger are required; Quirks defaults to NoQuirks, Sessions and Index may
// be nil when teardown is not used.
type Options struct {
	Watcher   FsWatcher
	Resolver  PathResolver
	Transfers Transfers
	Sessions  Sessions
	Index     IndexCleaner
	Quirks    QuirkFilter
	Notifier  notify.Notifier
	Layout    cache.Layout
	Logger    *slog.Logger
}

// Manager tracks locally cached files and re-uploads them when a native
// application edits them in place or via delete-and-recreate. See the
// package documentation for the concurrency model.
type Manager struct {
	watcher   FsWatcher
	resolver  PathResolver
	transfers Transfers
	sessions  Sessions
	index     IndexCleaner
	quirks    QuirkFilter
	notifier  notify.Notifier
	layout    cache.Layout
	logger    *slog.Logger

	registry *registry
	deferred *deferredQueue

	recheckDelay time.Duration

	calls   chan func()
	updates chan FileUpdated
	stopped chan struct{}

	// runCtx is set once when Run starts; upload tasks inherit it.
	runCtx context.Context

	cleanWG sync.WaitGroup
}

// New creates a Manager. Call Run to start processing.
func New(opts Options) *Manager {
	quirks := opts.Quirks
	if quirks == nil {
		quirks = NoQuirks{}
	}

	return &Manager{
		watcher:      opts.Watcher,
		resolver:     opts.Resolver,
		transfers:    opts.Transfers,
		sessions:     opts.Sessions,
		index:        opts.Index,
		quirks:       quirks,
		notifier:     opts.Notifier,
		layout:       opts.Layout,
		logger:       opts.Logger,
		registry:     newRegistry(),
		deferred:     &deferredQueue{},
		recheckDelay: recreateCheckDelay,
		calls:        make(chan func()),
		updates:      make(chan FileUpdated, updatesBuffer),
		stopped:      make(chan struct{}),
	}
}

// Run is the manager's event loop. It owns all watch state; every mutation
// happens here. Returns when ctx is canceled or the watcher closes.
func (m *Manager) Run(ctx context.Context) error {
	m.runCtx = ctx

	defer close(m.stopped)
	defer m.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case fn := <-m.calls:
			fn()

		case ev, ok := <-m.watcher.Events():
			if !ok {
				return nil
			}

			if isChange(ev) {
				m.onFileChanged(ev.Name)
			}

		case err, ok := <-m.watcher.Errors():
			if !ok {
				return nil
			}

			m.logger.Warn("filesystem watcher error", slog.String("error", err.Error()))
		}
	}
}

// isChange filters out chmod-only events; mode changes never mean edited
// content.
func isChange(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// Updates returns the channel of uploaded-file announcements.
func (m *Manager) Updates() <-chan FileUpdated {
	return m.updates
}

// Watch starts tracking the cached copy of a remote file. Watching a file
// that does not exist locally logs and has no effect; re-watching an
// already-watched path is idempotent. A file currently parked in the
// deferred-recreation queue is left alone.
func (m *Manager) Watch(acct account.Account, repoID, pathInRepo string) {
	m.do(func() { m.watch(acct, repoID, pathInRepo) })
}

// Unwatch stops tracking a local cache path. Unwatching an untracked path
// is a no-op.
func (m *Manager) Unwatch(localPath string) {
	m.do(func() {
		m.registry.remove(localPath)
		m.removeWatchPath(localPath)
	})
}

// RemoveAllForAccount drops every watch owned by the account, leaving other
// accounts' watches untouched.
func (m *Manager) RemoveAllForAccount(a account.Account) {
	m.do(func() { m.removeAllForAccount(a) })
}

// do runs fn on the event loop and waits for it to finish. Becomes a no-op
// once the loop has stopped.
func (m *Manager) do(fn func()) {
	done := make(chan struct{})

	select {
	case m.calls <- func() { fn(); close(done) }:
	case <-m.stopped:
		return
	}

	select {
	case <-done:
	case <-m.stopped:
	}
}

// post schedules fn on the event loop without waiting. Used from timer and
// completion goroutines.
func (m *Manager) post(fn func()) {
	select {
	case m.calls <- fn:
	case <-m.stopped:
	}
}

// watch implements Watch on the event loop.
func (m *Manager) watch(acct account.Account, repoID, pathInRepo string) {
	localPath := m.resolver.LocalPath(repoID, pathInRepo)

	m.logger.Debug("watch cache file", slog.String("path", localPath))

	if !fileExists(localPath) {
		m.logger.Warn("unable to watch non-existent cache file",
			slog.String("path", localPath))
		return
	}

	// An edit-in-flight file pending recreation must not be double-tracked.
	if m.deferred.contains(repoID, pathInRepo) {
		return
	}

	// An in-flight upload keeps its record; the completion handler decides
	// its fate.
	if rec, ok := m.registry.get(localPath); ok && rec.uploading {
		return
	}

	m.addWatchPath(localPath)
	m.registry.put(localPath, &watchRecord{
		account:    acct,
		repoID:     repoID,
		pathInRepo: pathInRepo,
	})
}

func (m *Manager) removeAllForAccount(a account.Account) {
	for _, path := range m.registry.removeAccount(a) {
		m.removeWatchPath(path)
	}
}

// onFileChanged classifies a raw change notification for a path into
// modified or deleted and routes it. Runs on the event loop.
func (m *Manager) onFileChanged(localPath string) {
	m.logger.Debug("detected cache file change", slog.String("path", localPath))

	if m.quirks.Spurious(localPath) {
		return
	}

	// Stop monitoring before touching anything else, so processing does not
	// race a notification storm for the same path.
	m.removeWatchPath(localPath)

	rec, ok := m.registry.get(localPath)
	if !ok {
		// Unsolicited or foreign notification.
		return
	}

	if !fileExists(localPath) {
		m.logger.Debug("cache file removed or renamed", slog.String("path", localPath))

		// Some applications delete and recreate the file when saving. Park
		// the record and double-check for recreation after a short delay.
		snapshot := *rec
		m.registry.remove(localPath)
		m.deferred.push(deferredEntry{
			account:    snapshot.account,
			repoID:     snapshot.repoID,
			pathInRepo: snapshot.pathInRepo,
		})
		time.AfterFunc(m.recheckDelay, func() { m.post(m.checkRecreated) })

		return
	}

	m.startUpload(rec, localPath)
}

// startUpload hands a changed file to the transfer layer and arranges for
// the completion to re-enter the event loop.
func (m *Manager) startUpload(rec *watchRecord, localPath string) {
	task := m.transfers.CreateUploadTask(
		rec.account,
		rec.repoID,
		cache.ParentPath(rec.pathInRepo),
		localPath,
		cache.BaseName(rec.pathInRepo),
		true,
	)

	m.logger.Info("start uploading new version of file",
		slog.String("path", localPath), slog.String("repo_id", rec.repoID))

	rec.uploading = true

	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	task.Start(ctx)

	go func() {
		res := <-task.Done()
		m.post(func() { m.onUploadFinished(task, res) })
	}()
}

// onUploadFinished handles an upload completion on the event loop. Success
// restores monitoring; failure permanently drops the watch, so the next
// user-initiated save starts a fresh lifecycle.
func (m *Manager) onUploadFinished(task transfer.Task, res transfer.Result) {
	localPath := task.LocalPath()
	fileName := filepath.Base(localPath)

	if !res.Ok() {
		m.logger.Warn("failed to upload new version of file",
			slog.String("path", localPath), slog.String("error", res.Err.Error()))
		m.notifier.UploadFailure(fileName, task.RepoID())
		m.registry.remove(localPath)

		return
	}

	m.logger.Info("uploaded new version of file", slog.String("path", localPath))
	m.notifier.UploadSuccess(fileName, task.RepoID())
	m.emitUpdate(FileUpdated{RepoID: task.RepoID(), PathInRepo: task.PathInRepo()})
	m.addWatchPath(localPath)

	if rec, ok := m.registry.get(localPath); ok {
		rec.uploading = false
	}
}

// checkRecreated consumes the oldest deferred entry: if its file is back on
// disk the watch is restored and the recreation is treated as a
// modification; otherwise the entry is discarded.
func (m *Manager) checkRecreated() {
	e, ok := m.deferred.pop()
	if !ok {
		return
	}

	localPath := m.resolver.LocalPath(e.repoID, e.pathInRepo)
	if !fileExists(localPath) {
		m.logger.Debug("deferred cache file was not recreated, dropping",
			slog.String("path", localPath))
		return
	}

	m.logger.Debug("detected recreated file", slog.String("path", localPath))

	m.addWatchPath(localPath)
	m.registry.put(localPath, &watchRecord{
		account:    e.account,
		repoID:     e.repoID,
		pathInRepo: e.pathInRepo,
	})

	// Recreation is how some applications save; treat it as a modification.
	m.onFileChanged(localPath)
}

// emitUpdate delivers a FileUpdated announcement without ever blocking the
// event loop; a full subscriber channel drops the announcement.
func (m *Manager) emitUpdate(u FileUpdated) {
	select {
	case m.updates <- u:
	default:
		m.logger.Warn("dropping file-updated event, subscriber not draining",
			slog.String("repo_id", u.RepoID), slog.String("path", u.PathInRepo))
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
