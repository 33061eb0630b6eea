// Package otel publishes sessionauth engine metrics as OpenTelemetry
// observable instruments.
//
// Counters keep the names used by the Prometheus collector. The resolve
// latency histogram becomes two gauges: <name>_bucket with an "le" attribute
// and <name>_count. Callers own the MeterProvider and its readers.
package otel
