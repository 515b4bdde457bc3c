// Package otel publishes phonauth engine metrics through an OpenTelemetry
// Meter.
//
// [NewExporter] registers one observable counter per engine counter and
// one observable gauge per latency bucket, all fed by a single callback
// that snapshots the Engine at collection time. The caller owns the
// MeterProvider.
package otel
