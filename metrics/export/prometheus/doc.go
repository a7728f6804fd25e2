// Package prometheus exposes authcore engine counters as a
// prometheus.Collector. Counters are named authcore_*_total and the resolve
// latency histogram is authcore_resolve_latency_seconds.
//
// The collector reads a snapshot on every scrape. Nothing is registered in
// the global registry; callers register the Collector or mount Handler.
package prometheus
