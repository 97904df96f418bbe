// Package rotator owns the pool of (credential, model) pairs used for speech
// synthesis and their health state.
//
// Pairs are ordered by model priority first, then by credential order. Each
// pair is Available, in Cooldown until a deadline, or Disabled for the rest
// of the session. Health only changes through Report; cooldowns lapse on their
// own when the deadline passes. Callers keep one Exclusion per chunk so a pair
// is tried at most once per chunk regardless of how many chunks run
// concurrently.
//
// Gate enforces the per-credential concurrency cap and the minimum spacing
// between requests on one credential.
package rotator
