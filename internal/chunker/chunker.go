package chunker

import (
	"fmt"
	"time"
	"unicode/utf8"

	"dubline/internal/services"
	"dubline/internal/textutil"
	"dubline/internal/transcript"
)

// Chunk is a merged group of consecutive segments. Immutable once built.
type Chunk struct {
	Index          int     `json:"index"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Text           string  `json:"text"`
	SegmentIndices []int   `json:"segment_indices"`
}

// Duration returns the chunk's target duration in seconds.
func (c Chunk) Duration() float64 {
	return c.End - c.Start
}

// TargetDuration returns the chunk's target duration.
func (c Chunk) TargetDuration() time.Duration {
	return time.Duration(c.Duration() * float64(time.Second))
}

// Options bounds chunk size. MaxChars <= 0 disables the character limit.
type Options struct {
	MaxDuration time.Duration
	MinDuration time.Duration
	Lookback    time.Duration
	MaxChars    int
}

// Validate checks option consistency.
func (o Options) Validate() error {
	if o.MaxDuration <= 0 {
		return services.Wrap(services.ErrConfiguration, "chunker", "options", "max duration must be positive", nil)
	}
	if o.MinDuration < 0 || o.MinDuration > o.MaxDuration {
		return services.Wrap(services.ErrConfiguration, "chunker", "options",
			fmt.Sprintf("min duration %s must be between 0 and max %s", o.MinDuration, o.MaxDuration), nil)
	}
	if o.Lookback < 0 {
		return services.Wrap(services.ErrConfiguration, "chunker", "options", "lookback must not be negative", nil)
	}
	return nil
}

const timeEpsilon = 1e-9

// Split groups ordered, non-overlapping segments into chunks.
func Split(segments []transcript.Segment, opts Options) ([]Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := checkOrdered(segments); err != nil {
		return nil, err
	}

	maxDur := opts.MaxDuration.Seconds()
	minDur := opts.MinDuration.Seconds()
	lookback := opts.Lookback.Seconds()

	var chunks []Chunk
	n := len(segments)
	carry := -1 // first segment of a too-short chunk waiting to merge forward
	for i := 0; i < n; {
		first := i
		if carry >= 0 {
			first = carry
		}
		end := i
		chars := textLength(segments, first, end)
		for end+1 < n {
			next := end + 1
			nextChars := chars + joinedLength(segments[next].Text, chars)
			if segments[next].End-segments[first].Start > maxDur+timeEpsilon {
				break
			}
			if opts.MaxChars > 0 && nextChars > opts.MaxChars {
				break
			}
			end, chars = next, nextChars
		}

		if end+1 < n {
			// Carried segments are skipped: a cut inside them would rebuild the short chunk.
			end = sentenceBoundary(segments, i, end, lookback)
		}

		duration := segments[end].End - segments[first].Start
		if duration+timeEpsilon < minDur && end+1 < n {
			carry = first
			i = end + 1
			continue
		}

		chunks = append(chunks, build(len(chunks), segments, first, end))
		carry = -1
		i = end + 1
	}
	return chunks, nil
}

// sentenceBoundary returns the latest index in [lo, end] whose segment ends a
// sentence within lookback seconds of the greedy boundary, or end if none.
func sentenceBoundary(segments []transcript.Segment, lo, end int, lookback float64) int {
	boundary := segments[end].End
	for k := end; k >= lo; k-- {
		if boundary-segments[k].End > lookback+timeEpsilon {
			break
		}
		if textutil.EndsSentence(segments[k].Text) {
			return k
		}
	}
	return end
}

func build(index int, segments []transcript.Segment, first, last int) Chunk {
	texts := make([]string, 0, last-first+1)
	indices := make([]int, 0, last-first+1)
	for k := first; k <= last; k++ {
		texts = append(texts, segments[k].Text)
		indices = append(indices, k)
	}
	return Chunk{
		Index:          index,
		Start:          segments[first].Start,
		End:            segments[last].End,
		Text:           textutil.JoinTexts(texts),
		SegmentIndices: indices,
	}
}

func textLength(segments []transcript.Segment, first, last int) int {
	total := 0
	for k := first; k <= last; k++ {
		total += joinedLength(segments[k].Text, total)
	}
	return total
}

// joinedLength is the rune count text adds to a join whose current length is
// current (including the separating space).
func joinedLength(text string, current int) int {
	trimmedLen := utf8.RuneCountInString(text)
	if trimmedLen == 0 {
		return 0
	}
	if current > 0 {
		return trimmedLen + 1
	}
	return trimmedLen
}

func checkOrdered(segments []transcript.Segment) error {
	for i, seg := range segments {
		if seg.End-seg.Start <= timeEpsilon {
			return services.Wrap(services.ErrValidation, "chunker", "split",
				fmt.Sprintf("segment %d has non-positive duration", i), nil)
		}
		if i > 0 && seg.Start < segments[i-1].End-timeEpsilon {
			return services.Wrap(services.ErrValidation, "chunker", "split",
				fmt.Sprintf("segment %d overlaps or precedes segment %d", i, i-1), nil)
		}
	}
	return nil
}
