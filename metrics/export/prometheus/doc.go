// Package prometheus exposes engine metrics through a client_golang
// [prometheus.Collector].
//
// Counters are named sessionauth_*_total; the resolve latency histogram is
// sessionauth_resolve_latency_seconds. [Collector.Handler] serves a private
// registry, or callers register the collector on their own.
package prometheus
