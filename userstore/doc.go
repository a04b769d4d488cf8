// Package userstore provides ready-made implementations of the
// authengine.UserStore interface: a Postgres-backed store for production and
// an in-memory store for examples and tests.
//
// # Architecture boundaries
//
// Implementations translate storage results into the sentinel errors the
// engine contract requires: lookups report authengine.ErrUserNotFound, and
// Create reports authengine.ErrUsernameTaken or authengine.ErrEmailTaken on a
// uniqueness conflict. Any other error is a backend failure and surfaces
// wrapped.
//
// # What this package must NOT do
//
//   - Hash, verify, or otherwise inspect passwords (the engine owns hashing).
//   - Enforce role policy (the engine decides which roles are grantable).
//   - Cache user records (role freshness depends on reading the store).
package userstore
