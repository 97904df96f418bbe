package stitch_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"dubline/internal/audio"
	"dubline/internal/chunker"
	"dubline/internal/services"
	"dubline/internal/stitch"
	"dubline/internal/synthesis"
)

func write(t *testing.T, dir string, index int, clip audio.Clip) synthesis.Artifact {
	t.Helper()
	path := synthesis.ArtifactPath(dir, index)
	if err := audio.WriteWAV(path, clip); err != nil {
		t.Fatalf("write: %v", err)
	}
	return synthesis.Artifact{ChunkIndex: index, Path: path, SampleRate: clip.SampleRate, DurationSeconds: clip.Seconds()}
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func region(c audio.Clip, from, to float64) audio.Clip {
	a := audio.SamplesForSeconds(from, c.SampleRate)
	b := audio.SamplesForSeconds(to, c.SampleRate)
	return audio.Clip{Samples: c.Samples[a:b], SampleRate: c.SampleRate}
}

func TestStitchPlacesChunksAndFillsGaps(t *testing.T) {
	dir := t.TempDir()
	chunks := []chunker.Chunk{
		{Index: 0, Start: 0, End: 1},
		{Index: 1, Start: 1.5, End: 2.5},
		{Index: 2, Start: 3, End: 4},
	}
	artifacts := map[int]synthesis.Artifact{
		0: write(t, dir, 0, audio.Sine(24000, 300, 0.2, time.Second)),
		1: write(t, dir, 1, audio.Sine(16000, 300, 0.8, time.Second)),
		2: write(t, dir, 2, audio.Silence(24000, time.Second)),
	}
	out := filepath.Join(dir, "track.wav")

	// Reversed input order must not change placement.
	reversed := []chunker.Chunk{chunks[2], chunks[1], chunks[0]}
	res, err := stitch.New(stitch.Options{SampleRate: 24000, Fade: 20 * time.Millisecond, GapTolerance: 10 * time.Millisecond}).
		Stitch(context.Background(), reversed, artifacts, out)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if math.Abs(res.DurationSeconds-4.0) > 1e-3 || res.Chunks != 3 || len(res.Shifts) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	track, err := audio.ReadWAV(out)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if len(track.Samples) != 96000 || track.SampleRate != 24000 {
		t.Fatalf("track samples=%d rate=%d", len(track.Samples), track.SampleRate)
	}
	if track.Samples[0] != 0 {
		t.Fatalf("first sample should be faded in, got %d", track.Samples[0])
	}
	quiet := audio.Measure(region(track, 0.1, 0.9), 0).Peak
	loud := audio.Measure(region(track, 1.6, 2.4), 0).Peak
	if quiet > 0.25 || loud < 0.7 {
		t.Fatalf("chunks misplaced: quiet peak %.3f loud peak %.3f", quiet, loud)
	}
	if gap := audio.Measure(region(track, 1.0, 1.5), 0).Peak; gap != 0 {
		t.Fatalf("gap should be silent, peak %.4f", gap)
	}
	if math.Abs(res.SilenceSeconds-1.0) > 1e-3 {
		t.Fatalf("inserted silence = %.4f, want 1.0", res.SilenceSeconds)
	}
}

func TestStitchShiftsOverrunsAndTrimsTail(t *testing.T) {
	dir := t.TempDir()
	chunks := []chunker.Chunk{{Index: 0, Start: 0, End: 1}, {Index: 1, Start: 1, End: 2}}
	artifacts := map[int]synthesis.Artifact{
		0: write(t, dir, 0, audio.Sine(24000, 300, 0.5, seconds(1.5))),
		1: write(t, dir, 1, audio.Sine(24000, 300, 0.5, time.Second)),
	}
	res, err := stitch.New(stitch.Options{SampleRate: 24000}).Stitch(context.Background(), chunks, artifacts, filepath.Join(dir, "t.wav"))
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if len(res.Shifts) != 1 || res.Shifts[0].ChunkIndex != 1 || math.Abs(res.Shifts[0].Seconds-0.5) > 1e-3 {
		t.Fatalf("unexpected shifts %+v", res.Shifts)
	}
	if math.Abs(res.TrimmedSeconds-0.5) > 1e-3 || math.Abs(res.DurationSeconds-2.0) > 1e-3 {
		t.Fatalf("trimmed %.3f duration %.3f", res.TrimmedSeconds, res.DurationSeconds)
	}
}

func TestStitchSmallGapWithinTolerance(t *testing.T) {
	dir := t.TempDir()
	chunks := []chunker.Chunk{{Index: 0, Start: 0, End: 1}, {Index: 1, Start: 1.005, End: 2}}
	artifacts := map[int]synthesis.Artifact{
		0: write(t, dir, 0, audio.Sine(24000, 300, 0.5, time.Second)),
		1: write(t, dir, 1, audio.Sine(24000, 300, 0.5, seconds(0.995))),
	}
	res, err := stitch.New(stitch.Options{SampleRate: 24000, GapTolerance: 10 * time.Millisecond}).
		Stitch(context.Background(), chunks, artifacts, filepath.Join(dir, "t.wav"))
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	// The 5ms gap is absorbed; the track is padded at the end instead.
	if math.Abs(res.DurationSeconds-2.0) > 1e-3 || math.Abs(res.SilenceSeconds-0.005) > 1e-3 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStitchErrors(t *testing.T) {
	dir := t.TempDir()
	s := stitch.New(stitch.Options{})
	if _, err := s.Stitch(context.Background(), nil, nil, filepath.Join(dir, "t.wav")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty input: %v", err)
	}
	chunks := []chunker.Chunk{{Index: 0, Start: 0, End: 1}}
	if _, err := s.Stitch(context.Background(), chunks, map[int]synthesis.Artifact{}, filepath.Join(dir, "t.wav")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing artifact: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	artifacts := map[int]synthesis.Artifact{0: write(t, dir, 0, audio.Silence(24000, time.Second))}
	if _, err := s.Stitch(ctx, chunks, artifacts, filepath.Join(dir, "t.wav")); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled: %v", err)
	}
}
