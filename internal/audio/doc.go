// Package audio holds the PCM primitives the engine operates on: mono 16-bit
// clips, WAV encoding through go-audio, amplitude measurement, silence,
// smoothstep edge fades, resampling and exact-length fitting.
//
// Every artifact the engine writes is a mono 16-bit WAV. Multi-channel input
// is averaged down to mono on read.
package audio
