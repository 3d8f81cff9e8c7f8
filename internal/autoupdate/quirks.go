package autoupdate

import (
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// openQuirkWindow is how long after a file is opened its change
// notifications are treated as spurious.
const openQuirkWindow = 10 * time.Second

// QuirkFilter decides whether a change notification is a known-spurious
// artifact of the platform and should be ignored without touching any watch
// state.
type QuirkFilter interface {
	Spurious(localPath string) bool
}

// NoQuirks is the filter for platforms without the open-rewrite quirk.
type NoQuirks struct{}

func (NoQuirks) Spurious(string) bool { return false }

// OpenTracker works around viewers that touch or rewrite image and PDF
// files when opening them, which fires a false "modified" notification.
// Viewer integrations report opens via FileOpened; notifications within the
// window after an open are classified spurious.
//
// Entries are never evicted: only the latest open timestamp per path
// matters, and the table is keyed by the bounded set of files a user has
// opened.
type OpenTracker struct {
	mu     sync.Mutex
	opened map[string]time.Time
	now    func() time.Time
}

// NewOpenTracker creates an empty tracker.
func NewOpenTracker() *OpenTracker {
	return &OpenTracker{
		opened: make(map[string]time.Time),
		now:    time.Now,
	}
}

// FileOpened records that a viewer opened the file. Only image and PDF
// content is tracked; other types do not exhibit the rewrite-on-open quirk.
// May be called from any goroutine.
func (t *OpenTracker) FileOpened(localPath string) {
	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		return
	}

	if !strings.HasPrefix(mt.String(), "image/") && !mt.Is("application/pdf") {
		return
	}

	t.mu.Lock()
	t.opened[localPath] = t.now()
	t.mu.Unlock()
}

// Spurious reports whether the path was opened within the quirk window.
func (t *OpenTracker) Spurious(localPath string) bool {
	t.mu.Lock()
	ts, ok := t.opened[localPath]
	t.mu.Unlock()

	return ok && t.now().Sub(ts) < openQuirkWindow
}
