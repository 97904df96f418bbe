// Package transcript loads timestamped transcript segments and enforces the
// ordering invariants the chunker relies on.
//
// Inputs are JSON (an array of {start, end, text} records, or an object with
// a "segments" array) or SRT cue files. Times may be numeric seconds or
// strings in HH:MM:SS.mmm form. Normalize applies the configured malformed
// input policy: "fix" repairs ordering and small overlaps and reports every
// repair, "strict" rejects the first violation.
package transcript
