// Package prometheus provides Prometheus collectors for authengine metrics.
//
// [NewPrometheusExporter] accepts an [authengine.Engine] and exposes an [http.Handler]
// that renders all authengine counters and histograms in Prometheus text exposition format.
// Counter names are prefixed authengine_*_total; the single histogram is
// authengine_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
