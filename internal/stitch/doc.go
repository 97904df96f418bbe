// Package stitch assembles per-chunk audio into one continuous track.
//
// Chunks are walked in start order and their artifacts looked up by chunk
// index, so completion order never affects placement. Gaps wider than the
// tolerance become silence of exactly the gap length; every artifact gets a
// short smoothstep fade at both edges. Audio that overruns its slot pushes the
// following chunk later (recorded as a shift). The finished track is padded
// or trimmed to end exactly at the last chunk's end timestamp.
package stitch
