// Package chunker groups transcript segments into sentence-aligned chunks
// sized for translation and synthesis.
//
// Chunks grow greedily until the next segment would exceed the duration or
// character limit, then the boundary is pulled back to the latest
// sentence-terminal segment within the lookback window. Chunks shorter than
// the minimum duration are merged forward; only the final chunk may be short.
// A segment is never split, so a single over-long segment becomes its own
// chunk. Chunk indices are sequential and serve as stable keys for every
// later stage.
package chunker
