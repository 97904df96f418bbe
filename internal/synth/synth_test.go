package synth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dubline/internal/services"
	"dubline/internal/synth"
)

func TestNewSelectsProvider(t *testing.T) {
	s, err := synth.New(synth.Options{Provider: "openai"})
	if err != nil || s.Name() != "openai" {
		t.Fatalf("openai provider: %v %v", s, err)
	}
	s, err = synth.New(synth.Options{Provider: "Piper", PiperModelDir: t.TempDir()})
	if err != nil || s.Name() != "piper" {
		t.Fatalf("piper provider: %v %v", s, err)
	}
	if _, err := synth.New(synth.Options{Provider: "piper"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("piper without model dir: %v", err)
	}
	if _, err := synth.New(synth.Options{Provider: "espeak"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("unknown provider: %v", err)
	}
}

func TestOpenAISynthesize(t *testing.T) {
	var got map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write([]byte{1, 0, 2, 0, 3, 0})
	}))
	defer server.Close()

	provider := synth.NewOpenAI(server.URL+"/v1", server.Client())
	out, err := provider.Synthesize(context.Background(), synth.Request{
		Text: "hola mundo", Voice: "alloy", Model: "tts-1", CredentialID: "a", APIKey: "key-a",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.SampleRate != 24000 || out.Channels != 1 || len(out.PCM) != 6 {
		t.Fatalf("unexpected audio %+v", out)
	}
	if auth != "Bearer key-a" {
		t.Fatalf("authorization header = %q", auth)
	}
	if got["model"] != "tts-1" || got["input"] != "hola mundo" || got["response_format"] != "pcm" {
		t.Fatalf("unexpected request body %v", got)
	}
	clip, err := out.Clip()
	if err != nil || len(clip.Samples) != 3 || clip.Samples[2] != 3 {
		t.Fatalf("Clip() = %+v, %v", clip, err)
	}
}

func TestOpenAIErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   services.ErrorClass
		hint   time.Duration
	}{
		{"invalid key", 401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, services.ClassInvalidCredential, 0},
		{"quota", 429, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, services.ClassQuotaExhausted, 0},
		{"rate limit", 429, `{"error":{"message":"Rate limit reached. Please try again in 2s.","type":"requests","code":"rate_limit_exceeded"}}`, services.ClassThrottled, 2 * time.Second},
		{"moderation", 400, `{"error":{"message":"Input was flagged by our safety system","type":"invalid_request_error","code":null}}`, services.ClassContentRejected, 0},
		{"server", 503, `upstream unavailable`, services.ClassTransient, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			provider := synth.NewOpenAI(server.URL+"/v1", server.Client())
			_, err := provider.Synthesize(context.Background(), synth.Request{Text: "x", Model: "tts-1", APIKey: "k"})
			if got := services.Classify(err); got != tc.want {
				t.Fatalf("class = %s want %s (err=%v)", got, tc.want, err)
			}
			if tc.hint > 0 {
				if hint, ok := services.ResetHint(err); !ok || hint != tc.hint {
					t.Fatalf("hint = %v %v want %v", hint, ok, tc.hint)
				}
			}
		})
	}
}

func TestOpenAIMissingKeyIsInvalidCredential(t *testing.T) {
	provider := synth.NewOpenAI("http://127.0.0.1:0", nil)
	_, err := provider.Synthesize(context.Background(), synth.Request{Text: "x", Model: "tts-1", CredentialID: "empty"})
	if services.Classify(err) != services.ClassInvalidCredential {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestPiperSynthesize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "es_ES-voice.onnx"), []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	var gotArgs []string
	var gotStdin string
	provider := synth.NewPiper("piper", dir, 22050, nil).WithRunner(
		func(_ context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
			data, _ := io.ReadAll(stdin)
			gotStdin = string(data)
			gotArgs = append([]string{name}, args...)
			return []byte{0, 1, 0, 2}, nil
		})

	out, err := provider.Synthesize(context.Background(), synth.Request{Text: "hola", Voice: "3", Model: "es_ES-voice"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.SampleRate != 22050 || len(out.PCM) != 4 {
		t.Fatalf("unexpected audio %+v", out)
	}
	joined := strings.Join(gotArgs, " ")
	want := "piper --model " + filepath.Join(dir, "es_ES-voice.onnx") + " --output_raw --speaker 3"
	if joined != want {
		t.Fatalf("args = %q want %q", joined, want)
	}
	if gotStdin != "hola\n" {
		t.Fatalf("stdin = %q", gotStdin)
	}
}

func TestPiperFailures(t *testing.T) {
	dir := t.TempDir()
	provider := synth.NewPiper("", dir, 0, nil)
	_, err := provider.Synthesize(context.Background(), synth.Request{Text: "hola", Model: "missing"})
	if services.Classify(err) != services.ClassInvalidCredential {
		t.Fatalf("missing model should disable pair, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "v.onnx"), []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	provider.WithRunner(func(context.Context, io.Reader, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: bad input")
	})
	_, err = provider.Synthesize(context.Background(), synth.Request{Text: "hola", Model: "v"})
	if !errors.Is(err, services.ErrExternalTool) || services.Classify(err) != services.ClassUnknown {
		t.Fatalf("command failure should be an unclassified tool error, got %v", err)
	}
}
