// Package ffmpeg wraps the two ffmpeg invocations the engine needs: uniform
// time-stretching of a WAV artifact (chained atempo filters) and replacing a
// video's audio track with the dubbed track.
//
// Both write to a temp file beside the destination and rename on success, so
// a cancelled or failed run never leaves a partial output in place.
package ffmpeg
