// Package autoupdate keeps the remote side of the file cache consistent
// when a user edits a locally cached copy through a native application. It
// watches cache files for changes, distinguishes in-place saves from
// delete-then-recreate save patterns, re-uploads changed content exactly
// once per logical edit, and tears the cache down on logout.
//
// All watch state (registry, deferred-recreation queue) is owned by a
// single event loop goroutine inside Manager; filesystem notifications,
// recheck timers, upload completions, and the public API all serialize
// through it. Only the disk half of cache teardown runs elsewhere.
package autoupdate
