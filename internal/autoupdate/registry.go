package autoupdate

import "github.com/drivecache/drivecache/internal/account"

// watchRecord is the metadata for one cache file under watch. The registry
// keys records by local path, so the path is not stored redundantly here.
type watchRecord struct {
	account    account.Account
	repoID     string
	pathInRepo string
	uploading  bool
}

// registry maps local cache paths to watch records. At most one record
// exists per path. Only the manager's event loop touches it.
type registry struct {
	records map[string]*watchRecord
}

func newRegistry() *registry {
	return &registry{records: make(map[string]*watchRecord)}
}

func (r *registry) get(localPath string) (*watchRecord, bool) {
	rec, ok := r.records[localPath]
	return rec, ok
}

func (r *registry) put(localPath string, rec *watchRecord) {
	r.records[localPath] = rec
}

func (r *registry) remove(localPath string) {
	delete(r.records, localPath)
}

// removeAccount drops every record owned by the account and returns the
// local paths that were removed, so the caller can release OS watches.
func (r *registry) removeAccount(a account.Account) []string {
	var removed []string

	for path, rec := range r.records {
		if rec.account.Equal(a) {
			delete(r.records, path)
			removed = append(removed, path)
		}
	}

	return removed
}

func (r *registry) len() int {
	return len(r.records)
}
