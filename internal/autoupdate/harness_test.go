package autoupdate

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"github.com/drivecache/drivecache/internal/account"
	"github.com/drivecache/drivecache/internal/cache"
	"github.com/drivecache/drivecache/internal/transfer"
)

var (
	aliceAcct = account.Account{Server: "https://drive.example.com", Username: "alice"}
	bobAcct   = account.Account{Server: "https://drive.example.com", Username: "bob"}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeWatcher is an in-memory FsWatcher that records watch membership and
// lets tests inject synthetic filesystem events.
type fakeWatcher struct {
	mu       sync.Mutex
	watched  map[string]bool
	addCalls map[string]int
	failAdd  bool

	events chan fsnotify.Event
	errors chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		watched:  make(map[string]bool),
		addCalls: make(map[string]int),
		events:   make(chan fsnotify.Event, 64),
		errors:   make(chan error, 4),
	}
}

func (w *fakeWatcher) Add(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.addCalls[p]++
	if w.failAdd {
		return os.ErrPermission
	}

	w.watched[p] = true

	return nil
}

func (w *fakeWatcher) Remove(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.watched, p)

	return nil
}

func (w *fakeWatcher) WatchList() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := make([]string, 0, len(w.watched))
	for p := range w.watched {
		list = append(list, p)
	}

	return list
}

func (w *fakeWatcher) Events() <-chan fsnotify.Event { return w.events }
func (w *fakeWatcher) Errors() <-chan error          { return w.errors }
func (w *fakeWatcher) Close() error                  { return nil }

func (w *fakeWatcher) watching(p string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.watched[p]
}

func (w *fakeWatcher) addCount(p string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.addCalls[p]
}

func (w *fakeWatcher) emit(p string, op fsnotify.Op) {
	w.events <- fsnotify.Event{Name: p, Op: op}
}

// fakeTask is an inert transfer.Task completed manually by the test.
type fakeTask struct {
	id         string
	repoID     string
	pathInRepo string
	localPath  string
	done       chan transfer.Result
}

func (t *fakeTask) ID() string                   { return t.id }
func (t *fakeTask) RepoID() string               { return t.repoID }
func (t *fakeTask) PathInRepo() string           { return t.pathInRepo }
func (t *fakeTask) LocalPath() string            { return t.localPath }
func (t *fakeTask) Start(context.Context)        {}
func (t *fakeTask) Done() <-chan transfer.Result { return t.done }

func (t *fakeTask) complete(err error) {
	t.done <- transfer.Result{Err: err}
}

// fakeTransfers records created tasks and download cancellations.
type fakeTransfers struct {
	mu       sync.Mutex
	tasks    []*fakeTask
	canceled int
}

func (f *fakeTransfers) CreateUploadTask(
	_ account.Account, repoID, parentPath, localPath, fileName string, _ bool,
) transfer.Task {
	task := &fakeTask{
		id:         fileName,
		repoID:     repoID,
		pathInRepo: path.Join(parentPath, fileName),
		localPath:  localPath,
		done:       make(chan transfer.Result, 1),
	}

	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()

	return task
}

func (f *fakeTransfers) CancelAllDownloads() {
	f.mu.Lock()
	f.canceled++
	f.mu.Unlock()
}

func (f *fakeTransfers) taskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.tasks)
}

func (f *fakeTransfers) task(i int) *fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.tasks[i]
}

func (f *fakeTransfers) canceledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.canceled
}

// recordNotifier counts user-facing notifications.
type recordNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordNotifier) UploadSuccess(fileName, _ string) {
	n.mu.Lock()
	n.successes = append(n.successes, fileName)
	n.mu.Unlock()
}

func (n *recordNotifier) UploadFailure(fileName, _ string) {
	n.mu.Lock()
	n.failures = append(n.failures, fileName)
	n.mu.Unlock()
}

func (n *recordNotifier) counts() (successes, failures int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.successes), len(n.failures)
}

// sessionsFunc adapts a closure to Sessions.
type sessionsFunc func() (account.Account, error)

func (f sessionsFunc) Current() (account.Account, error) { return f() }

// fakeIndex records ClearAccount calls.
type fakeIndex struct {
	mu      sync.Mutex
	cleared []account.Account
}

func (f *fakeIndex) ClearAccount(_ context.Context, a account.Account) error {
	f.mu.Lock()
	f.cleared = append(f.cleared, a)
	f.mu.Unlock()

	return nil
}

func (f *fakeIndex) clearedAccounts() []account.Account {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]account.Account(nil), f.cleared...)
}

// env wires a Manager to fakes and a running event loop.
type env struct {
	t         *testing.T
	m         *Manager
	watcher   *fakeWatcher
	transfers *fakeTransfers
	notifier  *recordNotifier
	index     *fakeIndex
	layout    cache.Layout
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		t:         t,
		watcher:   newFakeWatcher(),
		transfers: &fakeTransfers{},
		notifier:  &recordNotifier{},
		index:     &fakeIndex{},
		layout:    cache.Layout{BaseDir: t.TempDir()},
	}

	e.m = New(Options{
		Watcher:   e.watcher,
		Resolver:  e.layout,
		Transfers: e.transfers,
		Sessions:  sessionsFunc(func() (account.Account, error) { return aliceAcct, nil }),
		Index:     e.index,
		Notifier:  e.notifier,
		Layout:    e.layout,
		Logger:    testLogger(),
	})

	// Short deferral so recreate tests finish quickly; long enough that a
	// test can reliably recreate the file inside the window.
	e.m.recheckDelay = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go e.m.Run(ctx)

	t.Cleanup(func() {
		cancel()
		select {
		case <-e.m.stopped:
		case <-time.After(5 * time.Second):
			t.Error("manager loop did not stop")
		}
	})

	return e
}

// createCacheFile writes a cache file where the resolver expects it and
// returns the local path.
func (e *env) createCacheFile(repoID, pathInRepo, content string) string {
	e.t.Helper()

	localPath := e.layout.LocalPath(repoID, pathInRepo)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(localPath), 0o700))
	require.NoError(e.t, os.WriteFile(localPath, []byte(content), 0o600))

	return localPath
}

// inspect runs fn on the event loop, giving tests a serialized view of
// manager state.
func (e *env) inspect(fn func(m *Manager)) {
	e.m.do(func() { fn(e.m) })
}

func (e *env) registryLen() int {
	var n int
	e.inspect(func(m *Manager) { n = m.registry.len() })

	return n
}

func (e *env) deferredLen() int {
	var n int
	e.inspect(func(m *Manager) { n = m.deferred.len() })

	return n
}

func (e *env) record(localPath string) (watchRecord, bool) {
	var (
		rec watchRecord
		ok  bool
	)

	e.inspect(func(m *Manager) {
		if r, found := m.registry.get(localPath); found {
			rec, ok = *r, true
		}
	})

	return rec, ok
}
