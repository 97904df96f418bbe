// Package checkpoint persists pipeline progress for resumable runs.
//
// The checkpoint is a versioned JSON document written atomically (temp file,
// fsync, rename, directory fsync) after every state-changing step, including
// each finished chunk artifact. It is the only source of truth for resuming;
// artifact files are consulted solely to confirm that recorded entries are
// still intact. A file that cannot be parsed or fails structural validation is
// reported as ErrCheckpointCorrupt and callers start over.
//
// Lock guards a work directory with an advisory file lock so two engines
// never write the same checkpoint.
package checkpoint
