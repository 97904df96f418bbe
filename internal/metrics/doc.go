// Package metrics provides the Prometheus collectors for one engine run.
//
// Each Engine owns its own registry so that concurrent runs in one process
// keep independent counters. Collectors are exported through WriteTextfile
// for node_exporter's textfile collector. A nil *Metrics is a valid no-op.
package metrics
