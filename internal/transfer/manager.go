// Package transfer creates and tracks asynchronous transfer operations
// against the repository server: upload tasks for the auto-update core and
// cancellation bookkeeping for in-flight downloads.
package transfer

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/drivecache/drivecache/internal/account"
)

// Manager is the upload-task factory and the download cancellation
// registry. Upload concurrency is bounded by a weighted semaphore shared by
// every task the manager creates.
type Manager struct {
	logger *slog.Logger
	slots  *semaphore.Weighted

	mu        sync.Mutex
	downloads map[string]context.CancelFunc
}

// NewManager creates a Manager allowing parallelUploads concurrent uploads.
func NewManager(parallelUploads int, logger *slog.Logger) *Manager {
	if parallelUploads < 1 {
		parallelUploads = 1
	}

	return &Manager{
		logger:    logger,
		slots:     semaphore.NewWeighted(int64(parallelUploads)),
		downloads: make(map[string]context.CancelFunc),
	}
}

// CreateUploadTask builds an upload task for one local file. isUpdate
// selects overwrite semantics on the server (true for auto-update
// re-uploads). The task is inert until Start is called.
func (m *Manager) CreateUploadTask(
	acct account.Account, repoID, parentPath, localPath, fileName string, isUpdate bool,
) Task {
	return &UploadTask{
		id:         newTaskID(),
		account:    acct,
		repoID:     repoID,
		parentPath: parentPath,
		localPath:  localPath,
		fileName:   fileName,
		isUpdate:   isUpdate,
		client:     NewClient(acct, m.logger),
		slots:      m.slots,
		done:       make(chan Result, 1),
	}
}

// RegisterDownload records the cancel function of an in-flight download so
// bulk cancellation can reach it. Returns an unregister function the
// download must call when it finishes on its own.
func (m *Manager) RegisterDownload(id string, cancel context.CancelFunc) func() {
	m.mu.Lock()
	m.downloads[id] = cancel
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.downloads, id)
		m.mu.Unlock()
	}
}

// CancelAllDownloads cancels every registered in-flight download. Called at
// cache teardown so no download writes into a tree that is being removed.
func (m *Manager) CancelAllDownloads() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("canceling all download tasks", slog.Int("count", len(m.downloads)))

	for id, cancel := range m.downloads {
		cancel()
		delete(m.downloads, id)
	}
}
