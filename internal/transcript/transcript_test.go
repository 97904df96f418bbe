package transcript

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dubline/internal/services"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"12.5", 12.5},
		{"0", 0},
		{"00:00:01.250", 1.25},
		{"01:02:03,004", 3723.004},
		{"02:03.5", 123.5},
		{" 00:00:10.000 ", 10},
	}
	for _, tc := range tests {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "abc", "1:2:3:4", "00:61:00.000", "00:00:75", "NaN", "9999999999:00:00", "25:00:00", "86400.5"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Fatalf("ParseTimestamp(%q) expected error", bad)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(3723.004); got != "01:02:03.004" {
		t.Fatalf("FormatTimestamp = %q", got)
	}
	if got := FormatRange(0, 6); got != "00:00:00.000-00:00:06.000" {
		t.Fatalf("FormatRange = %q", got)
	}
}

func TestParseJSONAcceptsMixedTimeForms(t *testing.T) {
	data := []byte(`[
		{"start": 0, "end": "00:00:02.000", "text": "  Hello   world. "},
		{"start": "2.5", "end": 4, "text": "Second"}
	]`)
	segments, err := Parse(data, FormatJSON)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].End != 2 || segments[0].Text != "Hello world." {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if segments[1].Start != 2.5 || segments[1].End != 4 {
		t.Fatalf("unexpected second segment %+v", segments[1])
	}
}

func TestParseJSONWrapperAndMissingTimes(t *testing.T) {
	segments, err := Parse([]byte(`{"segments":[{"start":1,"end":2,"text":"x"}]}`), FormatJSON)
	if err != nil || len(segments) != 1 {
		t.Fatalf("wrapper parse: segments=%v err=%v", segments, err)
	}
	_, err = Parse([]byte(`[{"start":1,"text":"x"}]`), FormatJSON)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing end, got %v", err)
	}
}

func TestLoadSRT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talk.srt")
	content := "1\r\n00:00:00,000 --> 00:00:02,000\r\nFirst line\r\nsecond line\r\n\r\n2\r\n00:00:02,500 --> 00:00:04,000 X1:0\r\nNext.\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}
	segments, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(segments))
	}
	if segments[0].Text != "First line second line" {
		t.Fatalf("unexpected cue text %q", segments[0].Text)
	}
	if segments[1].Start != 2.5 || segments[1].End != 4 {
		t.Fatalf("unexpected cue timing %+v", segments[1])
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	if _, err := Load("transcript.docx"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalizeStrictRejects(t *testing.T) {
	cases := map[string][]Segment{
		"overlap":      {{Start: 0, End: 2, Text: "a"}, {Start: 1.5, End: 3, Text: "b"}},
		"out of order": {{Start: 2, End: 3, Text: "a"}, {Start: 0, End: 1, Text: "b"}},
		"zero length":  {{Start: 1, End: 1, Text: "a"}},
		"negative":     {{Start: -1, End: 1, Text: "a"}},
	}
	for name, segs := range cases {
		_, _, err := Normalize(segs, NormalizeOptions{Policy: PolicyStrict})
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestNormalizeStrictAcceptsValid(t *testing.T) {
	segs := []Segment{{Start: 0, End: 1, Text: "a"}, {Start: 1, End: 2, Text: "b"}}
	out, fixes, err := Normalize(segs, NormalizeOptions{Policy: PolicyStrict})
	if err != nil || len(fixes) != 0 || len(out) != 2 {
		t.Fatalf("out=%v fixes=%v err=%v", out, fixes, err)
	}
}

func TestNormalizeFixRepairs(t *testing.T) {
	segs := []Segment{
		{Start: 4, End: 6, Text: "late"},
		{Start: 0, End: 2, Text: "first"},
		{Start: 1.9, End: 3, Text: "small overlap"},
		{Start: 3.5, End: 3.5, Text: "empty"},
		{Start: 5, End: 5.5, Text: "inside"},
	}
	out, fixes, err := Normalize(segs, NormalizeOptions{Policy: PolicyFix, OverlapTolerance: 250 * time.Millisecond})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	want := []Segment{
		{Start: 0, End: 2, Text: "first"},
		{Start: 2, End: 3, Text: "small overlap"},
		{Start: 4, End: 6, Text: "late inside"},
	}
	if len(out) != len(want) {
		t.Fatalf("got %d segments %+v, want %d", len(out), out, len(want))
	}
	for i := range want {
		if math.Abs(out[i].Start-want[i].Start) > 1e-9 || math.Abs(out[i].End-want[i].End) > 1e-9 || out[i].Text != want[i].Text {
			t.Fatalf("segment %d = %+v, want %+v", i, out[i], want[i])
		}
	}
	kinds := map[FixKind]int{}
	for _, fix := range fixes {
		kinds[fix.Kind]++
	}
	for _, kind := range []FixKind{FixReordered, FixTrimmedOverlap, FixDroppedEmptySpan, FixMergedOverlap} {
		if kinds[kind] != 1 {
			t.Fatalf("expected one %s fix, got %v", kind, fixes)
		}
	}
}

func TestNormalizeRejectsTimesBeyondOneDay(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2, Text: "Hello."},
		{Start: 2, End: 1e12, Text: "Forever."},
	}
	for _, policy := range []Policy{PolicyFix, PolicyStrict} {
		if _, _, err := Normalize(segments, NormalizeOptions{Policy: policy}); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("policy %s: expected validation error, got %v", policy, err)
		}
	}
	segments[1].End = math.Inf(1)
	if _, _, err := Normalize(segments, NormalizeOptions{Policy: PolicyFix}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for infinite end, got %v", err)
	}
}

func TestParseRejectsTimesBeyondOneDay(t *testing.T) {
	_, err := Parse([]byte(`[{"start":"9999999999:00:00","end":"9999999999:00:05","text":"late"}]`), FormatJSON)
	if err == nil {
		t.Fatal("expected error for timestamp beyond 24h")
	}
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	if _, _, err := Normalize(nil, NormalizeOptions{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
