// Package store provides SQLite-backed durable storage for model
// snapshots.
//
// The store keeps an ordered list of snapshots:
//   - Snapshots: one gzip-compressed JSON storable form per row
//   - Snapshot classes: the content hash of every class in a snapshot
//
// # Idempotency
//
// A snapshot is identified by content. Saving a form whose fingerprint is
// already stored returns the existing row instead of inserting a new one,
// whatever label was given.
//
// # Ordering
//
// Listings are ordered by seq, the insertion counter, never by created_at.
// Wall time is recorded for display only. Deleting a snapshot removes its
// class rows too.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
