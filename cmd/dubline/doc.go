// Command dubline turns a timed transcript into a dubbed audio track and,
// when given a video, muxes the track in place of the original audio.
//
// Runs checkpoint every stage under the work directory; re-running the same
// command resumes where the previous invocation stopped. "status" inspects
// that checkpoint, "runs" lists the run ledger, and "check" runs the same
// preflight checks "run" performs before spending provider quota.
package main
