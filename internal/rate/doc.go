// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  — login per-user
//   - ali: — login per-IP
//   - ar:  — refresh per-token
//
// # What this package must NOT do
//
//   - Decide which operations get throttled (that policy lives in the engine).
//   - Be imported outside the authengine module.
package rate
