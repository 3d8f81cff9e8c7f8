package transfer

import (
	"context"
	"path"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/drivecache/drivecache/internal/account"
)

// Result is the outcome of one finished task, delivered exactly once on the
// task's Done channel.
type Result struct {
	Err error
}

// Ok reports whether the task completed successfully.
func (r Result) Ok() bool {
	return r.Err == nil
}

// Task is an asynchronous transfer operation. Start returns immediately;
// the single Result arrives on Done when the transfer finishes. Done's
// channel is buffered, so a task never blocks on an absent consumer.
type Task interface {
	ID() string
	RepoID() string
	// PathInRepo is the remote path the task targets (parent dir + name).
	PathInRepo() string
	LocalPath() string
	Start(ctx context.Context)
	Done() <-chan Result
}

// UploadTask uploads one local file to its remote location. Created by
// Manager.CreateUploadTask.
type UploadTask struct {
	id         string
	account    account.Account
	repoID     string
	parentPath string
	localPath  string
	fileName   string
	isUpdate   bool

	client *Client
	slots  *semaphore.Weighted
	done   chan Result
}

func (t *UploadTask) ID() string        { return t.id }
func (t *UploadTask) RepoID() string    { return t.repoID }
func (t *UploadTask) LocalPath() string { return t.localPath }

func (t *UploadTask) PathInRepo() string {
	return path.Join(t.parentPath, t.fileName)
}

func (t *UploadTask) Done() <-chan Result {
	return t.done
}

// Start launches the upload on its own goroutine, bounded by the manager's
// upload slots. Any error, including a backing file deleted mid-flight,
// surfaces as an ordinary failed Result.
func (t *UploadTask) Start(ctx context.Context) {
	go func() {
		if err := t.slots.Acquire(ctx, 1); err != nil {
			t.done <- Result{Err: err}
			return
		}
		defer t.slots.Release(1)

		t.done <- Result{Err: t.run(ctx)}
	}()
}

func (t *UploadTask) run(ctx context.Context) error {
	link, err := t.client.UploadLink(ctx, t.repoID, t.parentPath)
	if err != nil {
		return err
	}

	return t.client.UploadFile(ctx, link, t.parentPath, t.localPath, t.fileName, t.isUpdate)
}

func newTaskID() string {
	return uuid.NewString()
}
