// Package optimistic makes state-changing operations feel instantaneous
// while preserving correctness when the server disagrees.
//
// A mutation runs in five steps: snapshot the cached value, apply the
// speculative transform to the cache immediately, invoke the server call,
// then either reconcile the cache with the authoritative server payload or
// restore the snapshot exactly. Dependent cache entries are invalidated on
// success.
//
// Mutations on the same key are serialized through a FIFO queue. A mutation
// enqueued behind an in-flight one still speculates immediately: its
// snapshot is taken from the current, already-speculative cache value, and
// its server call waits its turn. When an earlier mutation rolls back or
// reconciles, the speculative transforms of the mutations still queued
// behind it are replayed on top of the restored value, so a slow mutation's
// failure never silently discards a faster mutation's already-applied
// change.
//
// One consequence is a deterministic answer to the delete-versus-edit race:
// a delete issued while an edit of the same entity is in flight queues
// behind the edit and is applied after it settles, so the delete wins
// regardless of the edit's outcome.
package optimistic
