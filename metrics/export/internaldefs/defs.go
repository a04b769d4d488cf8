package internaldefs

import (
	authengine "github.com/zgoteam/authengine"
)

// CounterDef defines a public type used by authengine APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authengine.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authengine APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authengine.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the token lifecycle engine.
var CounterDefs = []CounterDef{
	{ID: authengine.MetricRegisterSuccess, Name: "authengine_register_success_total", Help: "Successful registrations."},
	{ID: authengine.MetricRegisterConflict, Name: "authengine_register_conflict_total", Help: "Registrations rejected for a username or email conflict."},
	{ID: authengine.MetricRegisterFailure, Name: "authengine_register_failure_total", Help: "Failed registrations."},
	{ID: authengine.MetricLoginSuccess, Name: "authengine_login_success_total", Help: "Successful login attempts."},
	{ID: authengine.MetricLoginFailure, Name: "authengine_login_failure_total", Help: "Failed login attempts."},
	{ID: authengine.MetricLoginRateLimited, Name: "authengine_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authengine.MetricRefreshSuccess, Name: "authengine_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authengine.MetricRefreshFailure, Name: "authengine_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: authengine.MetricRefreshReuseDetected, Name: "authengine_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authengine.MetricRefreshRateLimited, Name: "authengine_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: authengine.MetricRevoke, Name: "authengine_revoke_total", Help: "Refresh token revocations."},
	{ID: authengine.MetricRateLimitHit, Name: "authengine_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: authengine.MetricAuthenticateSuccess, Name: "authengine_authenticate_success_total", Help: "Requests authenticated with a valid access token."},
	{ID: authengine.MetricAuthenticateAnonymous, Name: "authengine_authenticate_anonymous_total", Help: "Requests carrying no bearer token."},
	{ID: authengine.MetricAuthenticateRejected, Name: "authengine_authenticate_rejected_total", Help: "Requests whose bearer token failed verification."},
}

// HistogramDefs is an exported constant or variable used by the token lifecycle engine.
var HistogramDefs = []HistogramDef{
	{ID: authengine.MetricAuthenticateLatency, Name: "authengine_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the token lifecycle engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the token lifecycle engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
