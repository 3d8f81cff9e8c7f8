package autoupdate

import "github.com/drivecache/drivecache/internal/account"

// deferredEntry is a watch record snapshot parked while its file is
// missing, waiting for the recheck timer to decide between recreation and
// true deletion.
type deferredEntry struct {
	account    account.Account
	repoID     string
	pathInRepo string
}

// deferredQueue is the FIFO of deferred entries. Each recheck consumes the
// oldest entry regardless of which timer fired; with one timer armed per
// push the counts always match.
type deferredQueue struct {
	entries []deferredEntry
}

func (q *deferredQueue) push(e deferredEntry) {
	q.entries = append(q.entries, e)
}

func (q *deferredQueue) pop() (deferredEntry, bool) {
	if len(q.entries) == 0 {
		return deferredEntry{}, false
	}

	e := q.entries[0]
	q.entries = q.entries[1:]

	return e, true
}

// contains reports whether a remote file is already parked in the queue.
// A file pending recreation must not be double-tracked by a new watch.
func (q *deferredQueue) contains(repoID, pathInRepo string) bool {
	for _, e := range q.entries {
		if e.repoID == repoID && e.pathInRepo == pathInRepo {
			return true
		}
	}

	return false
}

func (q *deferredQueue) len() int {
	return len(q.entries)
}
