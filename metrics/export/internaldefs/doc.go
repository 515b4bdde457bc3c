// Package internaldefs holds the metric names shared by the exporters.
//
// Prometheus and OpenTelemetry read the same definitions, so a metric is
// renamed in one place for both. Nothing here performs I/O.
package internaldefs
