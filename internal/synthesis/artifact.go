package synthesis

import (
	"fmt"
	"path/filepath"

	"dubline/internal/chunker"
)

// TranslatedChunk is a chunk plus the text to speak.
type TranslatedChunk struct {
	chunker.Chunk
	TranslatedText string `json:"translated_text"`
}

// Artifact is the audio produced for one chunk.
type Artifact struct {
	ChunkIndex        int     `json:"chunk_index"`
	Path              string  `json:"path"`
	SampleRate        int     `json:"sample_rate"`
	DurationSeconds   float64 `json:"duration_seconds"`
	AmplitudeVerified bool    `json:"amplitude_verified"`
	// Degraded marks a silence placeholder produced after every pair failed.
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Pair     string `json:"pair,omitempty"`
	Calls    int    `json:"calls"`
}

// ArtifactPath returns the raw artifact location for a chunk in dir.
func ArtifactPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk-%04d.wav", index))
}
