// Package store persists project snapshots and exported models.
//
// Store is the SQLite gateway. Memory is an in-process gateway with the same
// behaviour, used by tests and one-shot CLI runs. Package kv holds a Badger
// gateway.
//
// # Layout
//
//   - projects: one row per project id, the snapshot blob compressed with
//     zstd, its SnapshotDigest and a revision counter bumped on every Put
//   - models: exported trained models, keyed by model id
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Digests are computed over the uncompressed blob, so a project moved
// between gateways keeps its digest.
package store
