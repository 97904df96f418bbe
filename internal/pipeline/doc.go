// Package pipeline sequences the dubbing stages and owns resumption.
//
// Engine.Run walks INIT → CHUNKED → TRANSLATED → SYNTHESIZED → RECONCILED →
// STITCHED → COMPLETE, persisting the checkpoint after every chunk-level unit
// of work. On start it loads the work directory's checkpoint, verifies that
// recorded artifacts are intact, and resumes at the first stage with pending
// work. A checkpoint that is corrupt or was produced from a different
// transcript is archived and the run starts over.
//
// The Report lists degraded chunks by time range so partial results are never
// hidden behind a successful exit.
package pipeline
