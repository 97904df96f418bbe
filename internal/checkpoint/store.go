package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dubline/internal/fileutil"
	"dubline/internal/services"
)

// FileName is the checkpoint file inside a work directory.
const FileName = "checkpoint.json"

// Store reads and writes the checkpoint for one work directory.
type Store struct {
	mu   sync.Mutex
	dir  string
	path string
	now  func() time.Time
}

// NewStore returns a store rooted at workDir.
func NewStore(workDir string) *Store {
	return &Store{
		dir:  workDir,
		path: filepath.Join(workDir, FileName),
		now:  time.Now,
	}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string { return s.path }

// Dir returns the work directory.
func (s *Store) Dir() string { return s.dir }

// Load reads the checkpoint. A missing file returns (nil, nil). A file that
// cannot be decoded or fails validation returns ErrCheckpointCorrupt.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", services.ErrCheckpointCorrupt, s.path, err)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	st.ensureMaps()
	return &st, nil
}

// Save writes st atomically and stamps UpdatedAt.
func (s *Store) Save(st *State) error {
	if st == nil {
		return fmt.Errorf("%w: nil checkpoint", services.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Version = Version
	st.UpdatedAt = s.now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = st.UpdatedAt
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Archive moves the current checkpoint aside so the next run starts fresh.
// It returns the archived path, or "" when there was nothing to archive.
func (s *Store) Archive(reason string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	archiveDir := filepath.Join(s.dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	name := fmt.Sprintf("checkpoint-%s-%s.json", s.now().UTC().Format("20060102T150405.000"), reason)
	dst := filepath.Join(archiveDir, name)
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("archive checkpoint: %w", err)
	}
	return dst, nil
}
