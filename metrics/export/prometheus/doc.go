// Package prometheus exposes medauth engine counters through
// client_golang.
//
// [Collector] turns each engine snapshot into const metrics named
// medauth_*_total plus the medauth_validate_latency_seconds histogram.
// [Handler] mounts it on a private registry.
//
// # What this package must NOT do
//
//   - Register anything in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
