// Package prometheus renders phonauth engine metrics in the Prometheus text
// exposition format.
//
// The exporter keeps no state of its own: every scrape takes a fresh
// snapshot from the Engine, so it can be mounted at /api/metrics without a
// client library or registry.
package prometheus
