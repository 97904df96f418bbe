package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"dubline/internal/services"
	"dubline/internal/transcript"
)

func defaultOptions() Options {
	return Options{
		MaxDuration: 10 * time.Second,
		MinDuration: 2 * time.Second,
		Lookback:    4 * time.Second,
		MaxChars:    400,
	}
}

func seg(start, end float64, text string) transcript.Segment {
	return transcript.Segment{Start: start, End: end, Text: text}
}

func TestSplitKeepsShortTranscriptInOneChunk(t *testing.T) {
	segments := []transcript.Segment{
		seg(0, 2, "One."),
		seg(2, 4, "Two."),
		seg(4, 6, "Three."),
	}
	chunks, err := Split(segments, defaultOptions())
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %+v", len(chunks), chunks)
	}
	c := chunks[0]
	if c.Start != 0 || c.End != 6 || c.Text != "One. Two. Three." {
		t.Fatalf("unexpected chunk %+v", c)
	}
	if len(c.SegmentIndices) != 3 {
		t.Fatalf("expected 3 source segments, got %v", c.SegmentIndices)
	}
}

func TestSplitPrefersSentenceBoundaryWithinLookback(t *testing.T) {
	segments := []transcript.Segment{
		seg(0, 2, "Hello there."),
		seg(2, 4, "this is"),
		seg(4, 6, "a test"),
		seg(6, 8, "and more"),
	}
	opts := defaultOptions()
	opts.MaxDuration = 7 * time.Second
	chunks, err := Split(segments, opts)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %+v", chunks)
	}
	if chunks[0].End != 2 {
		t.Fatalf("expected boundary at sentence end 2s, got %v", chunks[0].End)
	}
	if chunks[1].Start != 2 || chunks[1].End != 8 {
		t.Fatalf("unexpected second chunk %+v", chunks[1])
	}
}

func TestSplitUsesGreedyBoundaryWithoutTerminal(t *testing.T) {
	segments := []transcript.Segment{
		seg(0, 3, "no"),
		seg(3, 6, "terminal"),
		seg(6, 9, "marks"),
		seg(9, 12, "here"),
	}
	opts := defaultOptions()
	opts.MaxDuration = 7 * time.Second
	chunks, err := Split(segments, opts)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 2 || chunks[0].End != 6 {
		t.Fatalf("expected greedy boundary at 6s, got %+v", chunks)
	}
}

func TestSplitMergesShortChunkForward(t *testing.T) {
	segments := []transcript.Segment{
		seg(0, 1, "Hi."),
		seg(1, 5, "A long sentence here."),
		seg(5, 9, "More words."),
		seg(9, 10, "end"),
	}
	opts := defaultOptions()
	opts.MaxDuration = 4500 * time.Millisecond
	chunks, err := Split(segments, opts)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %+v", chunks)
	}
	if chunks[0].Start != 0 || chunks[0].End != 5 {
		t.Fatalf("short leading chunk not merged forward: %+v", chunks[0])
	}
	for i, c := range chunks[:len(chunks)-1] {
		if c.Duration() < opts.MinDuration.Seconds() {
			t.Fatalf("chunk %d shorter than minimum: %+v", i, c)
		}
	}
	if last := chunks[len(chunks)-1]; last.Start != 9 || last.End != 10 {
		t.Fatalf("unexpected final chunk %+v", last)
	}
}

func TestSplitKeepsOverlongSegmentWhole(t *testing.T) {
	segments := []transcript.Segment{
		seg(0, 15, "A very long monologue without a break"),
		seg(15, 17, "Then this."),
	}
	chunks, err := Split(segments, defaultOptions())
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 2 || chunks[0].End != 15 || len(chunks[0].SegmentIndices) != 1 {
		t.Fatalf("expected the long segment as its own chunk, got %+v", chunks)
	}
}

func TestSplitRespectsCharacterLimit(t *testing.T) {
	segments := make([]transcript.Segment, 0, 6)
	for i := 0; i < 6; i++ {
		segments = append(segments, seg(float64(i), float64(i+1), "abcdefghij"))
	}
	opts := defaultOptions()
	opts.MinDuration = 0
	opts.MaxChars = 25
	chunks, err := Split(segments, opts)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks of two segments, got %+v", chunks)
	}
	for _, c := range chunks {
		if len([]rune(c.Text)) > opts.MaxChars {
			t.Fatalf("chunk exceeds char limit: %q", c.Text)
		}
	}
}

func TestSplitPreservesTextAndOrder(t *testing.T) {
	var segments []transcript.Segment
	var words []string
	cursor := 0.0
	for i := 0; i < 40; i++ {
		dur := 0.7 + float64(i%5)*0.6
		text := fmt.Sprintf("word%d", i)
		if i%4 == 3 {
			text += "."
		}
		if i%9 == 0 {
			text = ""
		}
		segments = append(segments, seg(cursor, cursor+dur, text))
		if text != "" {
			words = append(words, text)
		}
		cursor += dur + float64(i%3)*0.2
	}

	chunks, err := Split(segments, defaultOptions())
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	var got []string
	next := 0
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if i > 0 && c.Start < chunks[i-1].End {
			t.Fatalf("chunk %d overlaps previous", i)
		}
		if i < len(chunks)-1 && c.Duration() < 2 {
			t.Fatalf("chunk %d shorter than minimum: %v", i, c.Duration())
		}
		for _, idx := range c.SegmentIndices {
			if idx != next {
				t.Fatalf("segment %d skipped or duplicated (got %d)", next, idx)
			}
			next++
		}
		if c.Text != "" {
			got = append(got, c.Text)
		}
	}
	if next != len(segments) {
		t.Fatalf("covered %d segments, want %d", next, len(segments))
	}
	if strings.Join(got, " ") != strings.Join(words, " ") {
		t.Fatalf("text changed:\n got %q\nwant %q", strings.Join(got, " "), strings.Join(words, " "))
	}
	if chunks[0].Start != segments[0].Start || chunks[len(chunks)-1].End != segments[len(segments)-1].End {
		t.Fatalf("chunks do not span the transcript")
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	if _, err := Split([]transcript.Segment{seg(0, 2, "a"), seg(1, 3, "b")}, defaultOptions()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for overlap, got %v", err)
	}
	opts := defaultOptions()
	opts.MinDuration = 20 * time.Second
	if _, err := Split(nil, opts); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	chunks, err := Split(nil, defaultOptions())
	if err != nil || len(chunks) != 0 {
		t.Fatalf("chunks=%v err=%v", chunks, err)
	}
}
