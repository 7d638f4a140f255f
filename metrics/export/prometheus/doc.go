// Package prometheus exposes memoauth metrics through client_golang.
//
// [Collector] turns a memoauth.MetricsSnapshot into const metrics on every
// scrape. Counter names are memoauth_*_total; the single histogram is
// memoauth_authenticate_latency_seconds. [Handler] mounts the collector on a
// private registry.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate manager state.
package prometheus
