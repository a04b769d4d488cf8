// Package middleware exposes HTTP adapters for the token lifecycle engine:
// a non-rejecting identity guard plus enforcement wrappers.
//
// # Guards
//
//   - [Guard] — resolves the bearer token into an [authengine.Identity] and
//     always forwards the request, authenticated or not.
//   - [RequireAuthenticated] — rejects anonymous requests with 401.
//   - [RequireRole] — rejects anonymous requests with 401 and authenticated
//     requests lacking the role with 403.
//
// Guard reads the Authorization header, calls Engine.AuthenticateHeader, and
// injects the resolved identity into the request context. Enforcement is a
// separate, explicit layer so that handlers serving mixed audiences can read
// the identity without forcing authentication.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.AuthenticateHeader.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the user store (Engine handles I/O).
//   - Reject a request from Guard itself; rejection belongs to the Require
//     wrappers.
package middleware
