// Package otel mirrors authcore engine counters into OpenTelemetry
// observable instruments. One callback reads the engine snapshot per
// collection cycle; the caller owns the MeterProvider.
package otel
