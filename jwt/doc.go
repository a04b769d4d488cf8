// Package jwt manages RS256 access-token issuance and verification with strict
// validation semantics suitable for low-latency authentication paths.
//
// Keys are PEM-encoded RSA and parsed exactly once, at [NewManager]; a broken
// key is a construction error, never a runtime one. A [Manager] built without
// a private key is verify-only.
//
// Every verification failure surfaces as the single opaque [ErrInvalidToken].
// Callers that need to know WHY a token failed are asking the wrong question.
package jwt
