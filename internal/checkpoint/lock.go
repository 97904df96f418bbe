package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"dubline/internal/services"
)

// LockFileName is the advisory lock file inside a work directory.
const LockFileName = ".dubline.lock"

// Lock holds exclusive ownership of a work directory.
type Lock struct {
	path string
	fl   *flock.Flock
}

// AcquireLock takes the work directory lock without blocking.
func AcquireLock(workDir string) (*Lock, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	path := filepath.Join(workDir, LockFileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is held by another run", services.ErrWorkDirLocked, workDir)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. Safe on nil.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
