package pipeline

import (
	"math"
	"slices"
	"time"

	"dubline/internal/checkpoint"
	"dubline/internal/ledger"
	"dubline/internal/reconcile"
	"dubline/internal/transcript"
)

// Input is one run request.
type Input struct {
	Segments []transcript.Segment
	// VideoPath, when set, has its audio replaced by the dubbed track.
	VideoPath string
	// OutputPath receives the muxed video, or a copy of the track without a video.
	OutputPath string
	// Restart archives any existing checkpoint and starts from INIT.
	Restart bool
	// RetryDegraded synthesizes silence placeholders from a previous run again.
	RetryDegraded bool
}

// ChunkRange locates a chunk on the timeline.
type ChunkRange struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// DegradedChunk is a chunk emitted as silence.
type DegradedChunk struct {
	ChunkRange
	Reason string `json:"reason"`
}

// Drift is a chunk whose fitted audio misses its slot.
type Drift struct {
	ChunkRange
	Seconds float64          `json:"seconds"`
	Action  reconcile.Action `json:"action"`
	Factor  float64          `json:"factor"`
}

// StageTiming records how long a stage ran in this invocation.
type StageTiming struct {
	Stage    checkpoint.Stage `json:"stage"`
	Duration time.Duration    `json:"duration"`
}

// Report summarizes a run.
type Report struct {
	RunID           string           `json:"run_id"`
	WorkDir         string           `json:"work_dir"`
	Resumed         bool             `json:"resumed"`
	Stage           checkpoint.Stage `json:"stage"`
	TrackPath       string           `json:"track_path,omitempty"`
	OutputPath      string           `json:"output_path,omitempty"`
	DurationSeconds float64          `json:"duration_seconds"`
	ChunkCount      int              `json:"chunk_count"`
	// SynthesisCalls counts external synthesis calls made by this invocation.
	SynthesisCalls  int              `json:"synthesis_calls"`
	TranscriptFixes []transcript.Fix `json:"transcript_fixes,omitempty"`
	Repaired        []int            `json:"repaired,omitempty"`
	Degraded        []DegradedChunk  `json:"degraded,omitempty"`
	Untranslated    []ChunkRange     `json:"untranslated,omitempty"`
	Drift           []Drift          `json:"drift,omitempty"`
	Timings         []StageTiming    `json:"timings,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
}

// Complete reports whether the run reached COMPLETE.
func (r Report) Complete() bool { return r.Stage == checkpoint.StageComplete }

// Partial reports whether any chunk fell back to silence.
func (r Report) Partial() bool { return len(r.Degraded) > 0 }

func chunkRange(st *checkpoint.State, index int) ChunkRange {
	if index >= 0 && index < len(st.Chunks) {
		c := st.Chunks[index]
		return ChunkRange{Index: index, Start: c.Start, End: c.End}
	}
	return ChunkRange{Index: index}
}

// Summarize builds a report from a checkpoint.
func Summarize(st *checkpoint.State, driftTolerance time.Duration) Report {
	if st == nil {
		return Report{}
	}
	r := Report{
		RunID:      st.RunID,
		Stage:      st.Stage,
		ChunkCount: len(st.Chunks),
		OutputPath: st.OutputPath,
		LastError:  st.LastError,
	}
	if st.Track != nil {
		r.TrackPath = st.Track.Path
		r.DurationSeconds = st.Track.DurationSeconds
	}
	for _, a := range st.Degraded() {
		r.Degraded = append(r.Degraded, DegradedChunk{ChunkRange: chunkRange(st, a.ChunkIndex), Reason: a.Reason})
	}
	for _, idx := range st.Untranslated {
		r.Untranslated = append(r.Untranslated, chunkRange(st, idx))
	}
	tolerance := driftTolerance.Seconds()
	for idx, res := range st.Reconciled {
		if math.Abs(res.DriftSeconds) <= tolerance {
			continue
		}
		r.Drift = append(r.Drift, Drift{
			ChunkRange: chunkRange(st, idx),
			Seconds:    res.DriftSeconds,
			Action:     res.Action,
			Factor:     res.Factor,
		})
	}
	slices.SortFunc(r.Drift, func(a, b Drift) int { return a.Index - b.Index })
	return r
}

func (r Report) ledgerDegraded() []ledger.DegradedChunk {
	out := make([]ledger.DegradedChunk, 0, len(r.Degraded))
	for _, d := range r.Degraded {
		out = append(out, ledger.DegradedChunk{ChunkIndex: d.Index, Start: d.Start, End: d.End, Reason: d.Reason})
	}
	return out
}
