// Package logs reads the rotating JSON log that every dubline command writes.
//
// Tail returns the last N records that match a Filter (typically one run ID),
// Follow polls for new records until the context ends, and Render turns a
// record into the single-line console form. Memory stays bounded by the
// requested line count regardless of log size.
package logs
