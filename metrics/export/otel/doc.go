// Package otel publishes memoauth metrics as OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per memoauth counter. The
// authenticate latency histogram is published as *_bucket gauges with an le
// attribute plus *_count and *_sum gauges. A single callback reads
// Manager.MetricsSnapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate manager state.
package otel
