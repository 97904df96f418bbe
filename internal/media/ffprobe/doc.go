// Package ffprobe inspects media containers through ffprobe's JSON output.
//
// The muxer uses it to compare the dubbed track against the source video and
// the check command uses it to confirm a video input has a video stream.
package ffprobe
