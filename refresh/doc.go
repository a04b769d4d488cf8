// Package refresh implements persisted storage and atomic rotation for opaque
// refresh tokens.
//
// # Token format
//
// A token value is 32 bytes of crypto/rand output, base64url-encoded without
// padding. The value is the lookup key; it carries no internal structure and
// nothing can be learned from it without the store.
//
// # Record lifecycle
//
// Records are flagged revoked, never deleted: rotation and revocation flip the
// revoked flag and leave the row in place as an audit trail. Expiry is enforced
// at lookup time; there is no background sweeper.
//
// # Architecture boundaries
//
// This package owns record storage, the validity predicate, and the atomic
// single-use rotation protocol. Two backends implement [Store]: Redis (Lua
// compare-and-set) and Postgres (conditional UPDATE inside a transaction).
// Mapping rotation failures onto caller-facing credential errors is the
// Engine's job.
//
// # What this package must NOT do
//
//   - Issue or verify JWT access tokens.
//   - Touch user records or passwords.
//   - Collapse its distinct failure modes — the Engine needs them apart for
//     audit and replay metrics.
package refresh
