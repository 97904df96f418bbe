package checkpoint

import "fmt"

// Stage is a pipeline position. Stages only move forward.
type Stage string

const (
	StageInit        Stage = "INIT"
	StageChunked     Stage = "CHUNKED"
	StageTranslated  Stage = "TRANSLATED"
	StageSynthesized Stage = "SYNTHESIZED"
	StageReconciled  Stage = "RECONCILED"
	StageStitched    Stage = "STITCHED"
	StageComplete    Stage = "COMPLETE"
)

var stageOrder = []Stage{
	StageInit,
	StageChunked,
	StageTranslated,
	StageSynthesized,
	StageReconciled,
	StageStitched,
	StageComplete,
}

// Stages returns every stage in order.
func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

// Order returns the stage position, or -1 for unknown stages.
func (s Stage) Order() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s.Order() >= 0 }

// Next returns the following stage; COMPLETE is terminal.
func (s Stage) Next() Stage {
	i := s.Order()
	if i < 0 || i == len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// Before reports whether s precedes other.
func (s Stage) Before(other Stage) bool {
	return s.Order() < other.Order()
}

// AtLeast reports whether s is other or later.
func (s Stage) AtLeast(other Stage) bool {
	return s.Order() >= other.Order()
}

func (s Stage) String() string { return string(s) }

// ParseStage validates a stage name.
func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown stage %q", v)
	}
	return s, nil
}
