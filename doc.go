// Package authengine provides a token lifecycle engine with RS256-signed JWT
// access tokens, rotating opaque refresh tokens, and role-based request guarding.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authengine is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (TokenPair, Identity, MetricsSnapshot, etc.). Credential storage is the caller's problem:
// the engine talks to users through the [UserStore] interface and to refresh tokens through
// the [refresh.Store] interface. HTTP routing, request/response shaping, and process
// bootstrap live in cmd/ and examples/, never here.
//
// # What this package must NOT do
//
//   - Expose Redis or SQL clients, store internals, or token encoding details in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Distinguish unknown-username from wrong-password anywhere a caller can observe it.
//
// # Performance contract
//
// AuthenticateToken is the hot path. Access token verification is pure CPU work plus a
// single UserStore lookup for role freshness. Login, Refresh, and Register are allowed
// one store round-trip per backend per call.
package authengine
