// Package synthesis drives text-to-speech generation for translated chunks.
//
// For each chunk the Driver walks the rotator's credential/model pairs in
// priority order with a fresh exclusion set. A pair is retried on transient
// failures with exponential backoff, then excluded. Quota exhaustion,
// throttling and invalid credentials are reported back to the rotator so that
// other chunks skip the pair too. Content rejections and near-silent output
// exclude the pair without retry. When no pair is left the chunk receives a
// silence placeholder of its target duration and is flagged as degraded; the
// run continues.
//
// Pool runs the driver over many chunks with bounded parallelism. Results are
// keyed by chunk index. Cancelling the context stops new work; calls already
// in flight run to completion or their own timeout so that no partially
// written artifact is ever recorded.
package synthesis
