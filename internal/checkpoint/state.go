package checkpoint

import (
	"fmt"
	"slices"
	"time"

	"dubline/internal/chunker"
	"dubline/internal/fileutil"
	"dubline/internal/reconcile"
	"dubline/internal/services"
	"dubline/internal/stitch"
	"dubline/internal/synthesis"
)

// Version is the checkpoint schema version.
const Version = 1

// State is the persisted pipeline progress.
type State struct {
	Version     int             `json:"version"`
	RunID       string          `json:"run_id"`
	Stage       Stage           `json:"stage"`
	Fingerprint string          `json:"fingerprint"`
	Chunks      []chunker.Chunk `json:"chunks,omitempty"`
	// Translations holds translated text by chunk index.
	Translations map[int]string `json:"translations,omitempty"`
	// Untranslated lists chunks that kept their source text.
	Untranslated []int `json:"untranslated,omitempty"`
	// Completed lists chunk indices with a synthesized artifact, ascending.
	Completed  []int                      `json:"completed"`
	Artifacts  map[int]synthesis.Artifact `json:"artifacts,omitempty"`
	Reconciled map[int]reconcile.Result   `json:"reconciled,omitempty"`
	Track      *stitch.Result             `json:"track,omitempty"`
	OutputPath string                     `json:"output_path,omitempty"`
	VideoPath  string                     `json:"video_path,omitempty"`
	LastError  string                     `json:"last_error,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// NewState returns an INIT state.
func NewState(runID, fingerprint string, now time.Time) *State {
	return &State{
		Version:      Version,
		RunID:        runID,
		Stage:        StageInit,
		Fingerprint:  fingerprint,
		Translations: make(map[int]string),
		Artifacts:    make(map[int]synthesis.Artifact),
		Reconciled:   make(map[int]reconcile.Result),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

func (s *State) ensureMaps() {
	if s.Translations == nil {
		s.Translations = make(map[int]string)
	}
	if s.Artifacts == nil {
		s.Artifacts = make(map[int]synthesis.Artifact)
	}
	if s.Reconciled == nil {
		s.Reconciled = make(map[int]reconcile.Result)
	}
}

// Advance moves to the next stage. Any other target is rejected.
func (s *State) Advance(to Stage) error {
	if to != s.Stage.Next() || to == s.Stage {
		return fmt.Errorf("%w: illegal stage transition %s -> %s", services.ErrValidation, s.Stage, to)
	}
	s.Stage = to
	return nil
}

// RecordTranslation stores translated text for a chunk.
func (s *State) RecordTranslation(index int, text string, kept bool) {
	s.ensureMaps()
	s.Translations[index] = text
	if kept && !slices.Contains(s.Untranslated, index) {
		s.Untranslated = append(s.Untranslated, index)
		slices.Sort(s.Untranslated)
	}
}

// RecordArtifact stores a chunk's synthesized artifact, replacing any earlier one.
func (s *State) RecordArtifact(a synthesis.Artifact) {
	s.ensureMaps()
	s.Artifacts[a.ChunkIndex] = a
	if !slices.Contains(s.Completed, a.ChunkIndex) {
		s.Completed = append(s.Completed, a.ChunkIndex)
		slices.Sort(s.Completed)
	}
}

// RecordReconciled stores a chunk's reconciled artifact.
func (s *State) RecordReconciled(r reconcile.Result) {
	s.ensureMaps()
	s.Reconciled[r.Artifact.ChunkIndex] = r
}

// PendingTranslation returns chunk indices without a translation.
func (s *State) PendingTranslation() []int {
	var out []int
	for _, c := range s.Chunks {
		if _, ok := s.Translations[c.Index]; !ok {
			out = append(out, c.Index)
		}
	}
	return out
}

// PendingSynthesis returns chunk indices without an artifact.
func (s *State) PendingSynthesis() []int {
	var out []int
	for _, c := range s.Chunks {
		if _, ok := s.Artifacts[c.Index]; !ok {
			out = append(out, c.Index)
		}
	}
	return out
}

// PendingReconcile returns chunk indices without a reconciled artifact.
func (s *State) PendingReconcile() []int {
	var out []int
	for _, c := range s.Chunks {
		if _, ok := s.Reconciled[c.Index]; !ok {
			out = append(out, c.Index)
		}
	}
	return out
}

// Degraded returns artifacts that are silence placeholders, by chunk index.
func (s *State) Degraded() []synthesis.Artifact {
	var out []synthesis.Artifact
	for _, idx := range s.Completed {
		if a := s.Artifacts[idx]; a.Degraded {
			out = append(out, a)
		}
	}
	return out
}

// Validate checks structural consistency.
func (s *State) Validate() error {
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", services.ErrCheckpointCorrupt, fmt.Sprintf(format, args...))
	}
	if s.Version != Version {
		return corrupt("version %d, want %d", s.Version, Version)
	}
	if !s.Stage.Valid() {
		return corrupt("unknown stage %q", s.Stage)
	}
	if s.RunID == "" || s.Fingerprint == "" {
		return corrupt("missing run id or fingerprint")
	}
	if s.Stage.AtLeast(StageChunked) && len(s.Chunks) == 0 {
		return corrupt("stage %s without chunk manifest", s.Stage)
	}
	for i, c := range s.Chunks {
		if c.Index != i {
			return corrupt("chunk %d has index %d", i, c.Index)
		}
		if c.End <= c.Start {
			return corrupt("chunk %d has non-positive duration", i)
		}
		if i > 0 && c.Start < s.Chunks[i-1].End {
			return corrupt("chunk %d overlaps chunk %d", i, i-1)
		}
	}
	inRange := func(idx int) bool { return idx >= 0 && idx < len(s.Chunks) }
	for i, idx := range s.Completed {
		// Strictly ascending, so the length checks below count distinct chunks.
		if i > 0 && idx <= s.Completed[i-1] {
			return corrupt("completed set not strictly ascending at %d", idx)
		}
		a, ok := s.Artifacts[idx]
		if !ok || !inRange(idx) || a.ChunkIndex != idx || a.Path == "" {
			return corrupt("completed chunk %d has no valid artifact entry", idx)
		}
	}
	for idx, a := range s.Artifacts {
		if !inRange(idx) || a.ChunkIndex != idx || !slices.Contains(s.Completed, idx) {
			return corrupt("artifact entry %d inconsistent with completed set", idx)
		}
	}
	for idx, r := range s.Reconciled {
		if !inRange(idx) || r.Artifact.ChunkIndex != idx || r.Artifact.Path == "" {
			return corrupt("reconciled entry %d invalid", idx)
		}
	}
	if s.Stage.AtLeast(StageTranslated) && len(s.Translations) != len(s.Chunks) {
		return corrupt("stage %s with %d/%d translations", s.Stage, len(s.Translations), len(s.Chunks))
	}
	if s.Stage.AtLeast(StageSynthesized) && len(s.Completed) != len(s.Chunks) {
		return corrupt("stage %s with %d/%d artifacts", s.Stage, len(s.Completed), len(s.Chunks))
	}
	if s.Stage.AtLeast(StageReconciled) && len(s.Reconciled) != len(s.Chunks) {
		return corrupt("stage %s with %d/%d reconciled artifacts", s.Stage, len(s.Reconciled), len(s.Chunks))
	}
	if s.Stage.AtLeast(StageStitched) && (s.Track == nil || s.Track.Path == "") {
		return corrupt("stage %s without stitched track", s.Stage)
	}
	return nil
}

// Repair reports entries dropped by VerifyArtifacts.
type Repair struct {
	Synthesized []int
	Reconciled  []int
	Track       bool
	// From is the stage before repair; Stage is the resume stage after.
	From  Stage
	Stage Stage
}

// Changed reports whether anything was dropped.
func (r Repair) Changed() bool {
	return len(r.Synthesized) > 0 || len(r.Reconciled) > 0 || r.Track
}

// VerifyArtifacts drops entries whose files are missing or empty and moves
// the resume point back to the first stage whose output is now incomplete.
func (s *State) VerifyArtifacts() Repair {
	s.ensureMaps()
	repair := Repair{From: s.Stage}
	for _, idx := range slices.Clone(s.Completed) {
		if ok, _ := fileutil.NonEmptyFile(s.Artifacts[idx].Path); ok {
			continue
		}
		delete(s.Artifacts, idx)
		s.Completed = slices.DeleteFunc(s.Completed, func(v int) bool { return v == idx })
		// The reconciled output was derived from the lost artifact.
		delete(s.Reconciled, idx)
		repair.Synthesized = append(repair.Synthesized, idx)
	}
	for idx, r := range s.Reconciled {
		if ok, _ := fileutil.NonEmptyFile(r.Artifact.Path); !ok {
			delete(s.Reconciled, idx)
			repair.Reconciled = append(repair.Reconciled, idx)
		}
	}
	slices.Sort(repair.Reconciled)
	if s.Track != nil {
		if ok, _ := fileutil.NonEmptyFile(s.Track.Path); !ok {
			s.Track = nil
			repair.Track = true
		}
	}

	switch {
	case len(repair.Synthesized) > 0 && s.Stage.AtLeast(StageSynthesized):
		s.Stage = StageTranslated
	case len(repair.Reconciled) > 0 && s.Stage.AtLeast(StageReconciled):
		s.Stage = StageSynthesized
	case repair.Track && s.Stage.AtLeast(StageStitched):
		s.Stage = StageReconciled
	}
	if s.Stage.AtLeast(StageStitched) && s.Track == nil {
		s.Stage = StageReconciled
	}
	repair.Stage = s.Stage
	return repair
}

// ForgetDegraded drops every placeholder artifact so the chunks are
// synthesized again, rewinding the resume point when needed. It returns the
// affected chunk indices.
func (s *State) ForgetDegraded() []int {
	s.ensureMaps()
	var dropped []int
	for _, a := range s.Degraded() {
		dropped = append(dropped, a.ChunkIndex)
	}
	if len(dropped) == 0 {
		return nil
	}
	for _, idx := range dropped {
		delete(s.Artifacts, idx)
		delete(s.Reconciled, idx)
	}
	s.Completed = slices.DeleteFunc(s.Completed, func(v int) bool { return slices.Contains(dropped, v) })
	s.Track = nil
	if s.Stage.AtLeast(StageSynthesized) {
		s.Stage = StageTranslated
	}
	return dropped
}
