// Package logging assembles structured slog loggers and formatting helpers used
// across dubline.
//
// It owns the console and JSON handlers, a size-rotated JSON file sink, and
// exposes context-aware helpers so pipeline code can automatically tag log
// lines with run IDs, stages, chunk indices, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Warnings about degraded output (silence placeholders, timing drift, pair
// cooldowns) go through WarnWithContext so each carries an event type, a hint,
// and the user-facing impact.
package logging
