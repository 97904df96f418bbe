// Package notifications announces finished dubbing runs over ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the pipeline can call it unconditionally. Partial and failed runs are sent
// with high priority; interrupted runs with low priority.
package notifications
