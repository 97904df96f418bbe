package transcript

import (
	"fmt"
	"math"
	"sort"
	"time"

	"dubline/internal/services"
	"dubline/internal/textutil"
)

// Policy selects how malformed transcripts are handled.
type Policy string

const (
	PolicyFix    Policy = "fix"
	PolicyStrict Policy = "strict"
)

// FixKind names one kind of repair applied under PolicyFix.
type FixKind string

const (
	FixClampedStart     FixKind = "clamped_start"
	FixDroppedEmptySpan FixKind = "dropped_empty_span"
	FixReordered        FixKind = "reordered"
	FixTrimmedOverlap   FixKind = "trimmed_overlap"
	FixMergedOverlap    FixKind = "merged_overlap"
)

// Fix records a repair. Index refers to the segment's position in the input.
type Fix struct {
	Index  int
	Kind   FixKind
	Detail string
}

// NormalizeOptions configures Normalize.
type NormalizeOptions struct {
	Policy           Policy
	OverlapTolerance time.Duration
}

const timeEpsilon = 1e-9

type indexedSegment struct {
	Segment
	index int
}

// Normalize returns segments that are time-ordered, non-overlapping and of
// positive length. Under PolicyStrict the first violation is returned as a
// services.ErrValidation error. Under PolicyFix segments are stable-sorted by
// start, overlaps within tolerance are trimmed to the previous end, larger
// overlaps (and fully contained segments) are merged into the previous
// segment, and zero-length spans are dropped.
func Normalize(segments []Segment, opts NormalizeOptions) ([]Segment, []Fix, error) {
	if len(segments) == 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "transcript", "normalize", "transcript has no segments", nil)
	}
	// Out-of-range times are rejected under either policy; there is nothing to repair them to.
	for i, seg := range segments {
		if !inRange(seg.Start) || !inRange(seg.End) {
			return nil, nil, invalidSegment(i, "time %.3f-%.3f outside 0-%ds", seg.Start, seg.End, MaxTimestamp)
		}
	}
	switch opts.Policy {
	case PolicyStrict:
		if err := validateStrict(segments); err != nil {
			return nil, nil, err
		}
		out := make([]Segment, len(segments))
		copy(out, segments)
		return out, nil, nil
	case PolicyFix, "":
		return fixSegments(segments, opts.OverlapTolerance.Seconds())
	default:
		return nil, nil, services.Wrap(services.ErrConfiguration, "transcript", "normalize",
			fmt.Sprintf("unknown malformed-input policy %q", opts.Policy), nil)
	}
}

func validateStrict(segments []Segment) error {
	for i, seg := range segments {
		if seg.Start < 0 || math.IsNaN(seg.Start) || math.IsNaN(seg.End) {
			return invalidSegment(i, "start %.3f is negative or not a number", seg.Start)
		}
		if seg.End-seg.Start <= timeEpsilon {
			return invalidSegment(i, "end %.3f is not after start %.3f", seg.End, seg.Start)
		}
		if i == 0 {
			continue
		}
		prev := segments[i-1]
		if seg.Start < prev.Start {
			return invalidSegment(i, "start %.3f is before previous start %.3f", seg.Start, prev.Start)
		}
		if seg.Start < prev.End-timeEpsilon {
			return invalidSegment(i, "overlaps previous segment by %.3fs", prev.End-seg.Start)
		}
	}
	return nil
}

// inRange admits negative starts, which PolicyFix clamps.
func inRange(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v <= MaxTimestamp
}

func invalidSegment(index int, format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "transcript", "normalize",
		fmt.Sprintf("segment %d: %s", index, fmt.Sprintf(format, args...)), nil)
}

func fixSegments(segments []Segment, tolerance float64) ([]Segment, []Fix, error) {
	var fixes []Fix
	working := make([]indexedSegment, 0, len(segments))
	for i, seg := range segments {
		if math.IsNaN(seg.Start) || math.IsNaN(seg.End) {
			return nil, nil, invalidSegment(i, "time is not a number")
		}
		if seg.Start < 0 {
			fixes = append(fixes, Fix{Index: i, Kind: FixClampedStart, Detail: fmt.Sprintf("start %.3f clamped to 0", seg.Start)})
			seg.Start = 0
		}
		if seg.End-seg.Start <= timeEpsilon {
			fixes = append(fixes, Fix{
				Index:  i,
				Kind:   FixDroppedEmptySpan,
				Detail: fmt.Sprintf("span %s has no duration (text %q)", FormatRange(seg.Start, seg.End), textutil.Snippet(seg.Text, 40)),
			})
			continue
		}
		working = append(working, indexedSegment{Segment: seg, index: i})
	}
	if len(working) == 0 {
		return nil, fixes, services.Wrap(services.ErrValidation, "transcript", "normalize", "no segment has a positive duration", nil)
	}

	if !sort.SliceIsSorted(working, func(a, b int) bool { return working[a].Start < working[b].Start }) {
		sort.SliceStable(working, func(a, b int) bool { return working[a].Start < working[b].Start })
		fixes = append(fixes, Fix{Index: -1, Kind: FixReordered, Detail: "segments sorted by start time"})
	}

	out := make([]Segment, 0, len(working))
	for _, seg := range working {
		if len(out) == 0 {
			out = append(out, seg.Segment)
			continue
		}
		prev := &out[len(out)-1]
		if seg.Start >= prev.End-timeEpsilon {
			out = append(out, seg.Segment)
			continue
		}
		overlap := prev.End - seg.Start
		if seg.End > prev.End && overlap <= tolerance+timeEpsilon {
			fixes = append(fixes, Fix{
				Index:  seg.index,
				Kind:   FixTrimmedOverlap,
				Detail: fmt.Sprintf("start moved from %.3f to %.3f", seg.Start, prev.End),
			})
			seg.Start = prev.End
			out = append(out, seg.Segment)
			continue
		}
		fixes = append(fixes, Fix{
			Index:  seg.index,
			Kind:   FixMergedOverlap,
			Detail: fmt.Sprintf("overlap of %.3fs merged into previous segment", overlap),
		})
		prev.Text = textutil.JoinTexts([]string{prev.Text, seg.Text})
		if seg.End > prev.End {
			prev.End = seg.End
		}
	}
	return out, fixes, nil
}
