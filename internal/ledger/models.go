package ledger

import "time"

// Status is a run's terminal or in-flight state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Run is one ledger row.
type Run struct {
	RunID             string
	WorkDir           string
	Fingerprint       string
	Status            Status
	Stage             string
	Resumed           bool
	ChunkCount        int
	DegradedCount     int
	UntranslatedCount int
	SynthesisCalls    int
	OutputPath        string
	ErrorMessage      string
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool {
	return r.Status != StatusRunning
}

// Elapsed returns the run duration, or zero while running.
func (r Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DegradedChunk is a chunk emitted as silence.
type DegradedChunk struct {
	ChunkIndex int     `json:"chunk_index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Reason     string  `json:"reason"`
}

// Outcome is what RecordFinish stores.
type Outcome struct {
	Status            Status
	Stage             string
	ChunkCount        int
	UntranslatedCount int
	SynthesisCalls    int
	OutputPath        string
	Err               error
	Degraded          []DegradedChunk
}
