// Package metrics defines the Prometheus collectors exported by the
// scheduler and serves them over HTTP.
package metrics
