// Package cache implements the on-disk layout of the local file cache and
// the SQLite index that records which remote files are cached where.
package cache

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// On-disk names under the base directory. The temp dir only exists
// transiently during teardown (rename-then-delete).
const (
	fileCacheDirName     = "file-cache"
	fileCacheTempDirName = "file-cache-tmp"
	fileCacheDBName      = "file-cache.db"
)

// Layout resolves every cache-related path from one configured base
// directory. It is a pure value; nothing is created on disk until a file is
// actually cached.
type Layout struct {
	BaseDir string
}

// FileCacheDir returns the live cache content directory.
func (l Layout) FileCacheDir() string {
	return filepath.Join(l.BaseDir, fileCacheDirName)
}

// TempDir returns the transient teardown directory. A leftover at this path
// means a previous teardown was interrupted and should be finished first.
func (l Layout) TempDir() string {
	return filepath.Join(l.BaseDir, fileCacheTempDirName)
}

// IndexPath returns the path of the cache metadata database file.
func (l Layout) IndexPath() string {
	return filepath.Join(l.BaseDir, fileCacheDBName)
}

// LocalPath resolves the cache file path for a file in a remote repository.
// pathInRepo uses forward slashes and is NFC-normalized so that the same
// remote file always maps to the same cache path regardless of how the
// server or the local filesystem spells combining characters.
func (l Layout) LocalPath(repoID, pathInRepo string) string {
	rel := norm.NFC.String(strings.TrimPrefix(pathInRepo, "/"))
	return filepath.Join(l.FileCacheDir(), repoID, filepath.FromSlash(rel))
}

// ParentPath returns the remote parent directory of a path in a repository,
// always with a leading slash ("/" for top-level files).
func ParentPath(pathInRepo string) string {
	p := "/" + strings.TrimPrefix(pathInRepo, "/")
	parent := filepath.ToSlash(filepath.Dir(p))
	return parent
}

// BaseName returns the final element of a repository path.
func BaseName(pathInRepo string) string {
	return filepath.Base(filepath.FromSlash(pathInRepo))
}
