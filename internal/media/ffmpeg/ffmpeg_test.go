package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dubline/internal/logging"
	"dubline/internal/media/ffprobe"
	"dubline/internal/services"
)

func writingRunner(t *testing.T, calls *[][]string) commandRunner {
	t.Helper()
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, append([]string{name}, args...))
		return os.WriteFile(args[len(args)-1], []byte("media"), 0o644)
	}
}

func TestAtempoFilter(t *testing.T) {
	tests := map[float64]string{
		1.2: "atempo=1.200000",
		3.0: "atempo=2.000000,atempo=1.500000",
		0.3: "atempo=0.500000,atempo=0.600000",
		2.0: "atempo=2.000000",
	}
	for factor, want := range tests {
		if got := AtempoFilter(factor); got != want {
			t.Fatalf("AtempoFilter(%v) = %q, want %q", factor, got, want)
		}
	}
}

func TestStretchWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.wav")
	out := filepath.Join(dir, "timed.wav")
	var calls [][]string
	s := NewStretcher("", time.Minute, logging.NewNop())
	s.WithCommandRunner(writingRunner(t, &calls))

	if err := s.Stretch(context.Background(), in, out, 1.2, 24000); err != nil {
		t.Fatalf("Stretch returned error: %v", err)
	}
	if len(calls) != 1 || calls[0][0] != "ffmpeg" {
		t.Fatalf("unexpected calls %v", calls)
	}
	joined := strings.Join(calls[0], " ")
	if !strings.Contains(joined, "-filter:a atempo=1.200000") || !strings.Contains(joined, "-ar 24000") {
		t.Fatalf("unexpected args %q", joined)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".stretch-timed.wav")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestStretchFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	s := NewStretcher("ffmpeg", 0, nil)
	s.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		_ = os.WriteFile(args[len(args)-1], []byte("partial"), 0o644)
		return errors.New("exit status 1")
	})
	err := s.Stretch(context.Background(), "in.wav", filepath.Join(dir, "out.wav"), 1.1, 24000)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files after failure, found %d", len(entries))
	}
	if err := s.Stretch(context.Background(), "in.wav", filepath.Join(dir, "out.wav"), 0, 24000); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for zero factor, got %v", err)
	}
}

func TestMuxBuildsCommandAndProbes(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "in.mp4")
	audioPath := filepath.Join(dir, "dub.wav")
	out := filepath.Join(dir, "out", "dubbed.mp4")
	for _, p := range []string{video, audioPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	durations := map[string]string{video: "10.0", audioPath: "9.5", out: "9.5"}
	probe := ffprobe.New("ffprobe").WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return []byte(`{"streams":[],"format":{"duration":"` + durations[args[len(args)-1]] + `"}}`), nil
	})

	var calls [][]string
	m := NewMuxer(MuxOptions{AudioBitrate: "192k"}, probe, logging.NewNop())
	m.WithCommandRunner(writingRunner(t, &calls))

	result, err := m.Mux(context.Background(), MuxRequest{VideoPath: video, AudioPath: audioPath, OutputPath: out, Language: "es"})
	if err != nil {
		t.Fatalf("Mux returned error: %v", err)
	}
	joined := strings.Join(calls[0], " ")
	for _, want := range []string{"-map 0:v:0", "-map 1:a:0", "-c:v copy", "-c:a aac", "-b:a 192k", "-shortest", "-metadata:s:a:0 language=spa", "title=Spanish (dub)"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if result.VideoSeconds != 10 || result.AudioSeconds != 9.5 || result.OutputSeconds != 9.5 {
		t.Fatalf("unexpected durations %+v", result)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestMuxValidatesInputs(t *testing.T) {
	m := NewMuxer(MuxOptions{}, nil, nil)
	_, err := m.Mux(context.Background(), MuxRequest{VideoPath: "", AudioPath: "a.wav", OutputPath: "o.mp4"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = m.Mux(context.Background(), MuxRequest{VideoPath: "/missing.mp4", AudioPath: "/missing.wav", OutputPath: "o.mp4"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func hangingRunner(deadlines *[]bool) commandRunner {
	return func(ctx context.Context, _ string, _ ...string) error {
		_, ok := ctx.Deadline()
		*deadlines = append(*deadlines, ok)
		<-ctx.Done()
		return errors.New("signal: killed")
	}
}

func TestStretchTimesOutHungCommand(t *testing.T) {
	dir := t.TempDir()
	var deadlines []bool
	s := NewStretcher("ffmpeg", 20*time.Millisecond, nil)
	s.WithCommandRunner(hangingRunner(&deadlines))

	err := s.Stretch(context.Background(), "in.wav", filepath.Join(dir, "out.wav"), 1.2, 24000)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("timeout must not read as an interrupt: %v", err)
	}
	if len(deadlines) != 1 || !deadlines[0] {
		t.Fatalf("expected command context with deadline, got %v", deadlines)
	}
}

func TestStretchReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var deadlines []bool
	s := NewStretcher("ffmpeg", time.Minute, nil)
	s.WithCommandRunner(hangingRunner(&deadlines))

	err := s.Stretch(ctx, "in.wav", filepath.Join(t.TempDir(), "out.wav"), 1.2, 24000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMuxTimesOutHungCommand(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "in.mp4")
	audioPath := filepath.Join(dir, "dub.wav")
	for _, p := range []string{video, audioPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	var deadlines []bool
	m := NewMuxer(MuxOptions{Timeout: 20 * time.Millisecond}, nil, nil)
	m.WithCommandRunner(hangingRunner(&deadlines))

	out := filepath.Join(dir, "dubbed.mp4")
	_, err := m.Mux(context.Background(), MuxRequest{VideoPath: video, AudioPath: audioPath, OutputPath: out})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if len(deadlines) != 1 || !deadlines[0] {
		t.Fatalf("expected command context with deadline, got %v", deadlines)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected no output after timeout, stat err %v", err)
	}
}
