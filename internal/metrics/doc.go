// Package metrics provides Prometheus metrics for flowsync runs.
//
// Key metrics:
//   - Export jobs submitted, failed and status polls
//   - Entities created, updated and period values appended
//   - Hourly readings stored per route
//   - Run duration and last success per pipeline
//
// Runs are short-lived batch jobs, so the registry is dumped to a textfile
// for node_exporter rather than served.
package metrics
