package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dubline/internal/audio"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteText writes content to path and returns the path.
func WriteText(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteTone writes a mono 16-bit WAV sine tone loud enough to pass
// amplitude verification.
func WriteTone(t testing.TB, path string, d time.Duration, rate int) audio.Clip {
	t.Helper()
	return writeClip(t, path, audio.Sine(rate, 220, 0.5, d))
}

// WriteSilence writes a mono 16-bit WAV of digital silence.
func WriteSilence(t testing.TB, path string, d time.Duration, rate int) audio.Clip {
	t.Helper()
	return writeClip(t, path, audio.Silence(rate, d))
}

func writeClip(t testing.TB, path string, clip audio.Clip) audio.Clip {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := audio.WriteWAV(path, clip); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
	return clip
}
