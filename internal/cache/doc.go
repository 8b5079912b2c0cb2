// Package cache holds the in-memory map from repository root to the latest
// computed status of that repository.
//
// Entries are created lazily the first time a path inside a repository is
// looked up. Creating an entry starts a filesystem watcher for the
// repository and runs an initial status computation; afterwards every
// watcher notification schedules a recompute through a per-root
// [throttle.Throttle], so at most one computation per root is in flight and
// bursts of changes collapse into at most one follow-up run.
//
// # Reads
//
// [Entry.Status] never blocks on a running computation. It returns the most
// recently completed snapshot, or an explicit empty snapshot before the
// first one completes. Each published snapshot carries a version that only
// grows for the lifetime of an entry.
//
// # Lifecycle
//
// An entry lives until [Cache.RemoveRepo] is called for its root or its
// watcher reports that the repository disappeared. A later lookup creates a
// fresh entry whose version starts over.
package cache
