package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubline/internal/config"
	"dubline/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func translatorConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Translation.Enabled = true
	cfg.Translation.APIKey = "good-key"
	cfg.Translation.BaseURL = url
	cfg.Translation.Model = "demo"
	cfg.Translation.TargetLanguage = "es"
	return cfg
}

func TestCheckTranslator_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	result := CheckTranslator(context.Background(), translatorConfig(t, srv.URL))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckTranslator_BadKey(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckTranslator(context.Background(), translatorConfig(t, srv.URL))
	if result.Passed {
		t.Fatal("expected failure for rejected key")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestCheckTranslator_MissingKey(t *testing.T) {
	cfg := translatorConfig(t, "http://localhost")
	cfg.Translation.APIKey = ""
	result := CheckTranslator(context.Background(), cfg)
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPool([]string{"tts-1", "tts-1-hd"}, "a", "b"))
	result := CheckCredentials(cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "4 pairs") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}

	cfg.Rotation.Credentials[1].APIKey = ""
	result = CheckCredentials(cfg)
	if result.Passed || !strings.Contains(result.Detail, "b") {
		t.Fatalf("expected missing key for b, got %+v", result)
	}

	cfg.Rotation.Credentials = nil
	if CheckCredentials(cfg).Passed {
		t.Fatal("expected empty pool to fail")
	}
}

func TestCheckPiperModels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	modelDir := t.TempDir()
	cfg.Synthesis.Provider = config.ProviderPiper
	cfg.Synthesis.PiperModelDir = modelDir
	cfg.Rotation.Models = []string{"en_US-lessac-medium", "missing-voice.onnx"}
	if err := os.WriteFile(filepath.Join(modelDir, "en_US-lessac-medium.onnx"), []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}

	results := CheckPiperModels(cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("expected first model to pass, got %s", results[0].Detail)
	}
	if results[1].Passed {
		t.Fatal("expected missing voice file to fail")
	}
}

func TestRunAllSkipsDisabledTranslator(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %+v", results)
	}
	for _, r := range results {
		if r.Name == "Translator" {
			t.Fatal("translator checked while disabled")
		}
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestRunAllReportsMissingWorkDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) == 0 || failed[0].Name != "Work directory" {
		t.Fatalf("expected work directory failure, got %+v", failed)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"))
	run := func(context.Context, string, ...string) ([]byte, error) {
		return []byte(" ... atempo            A->A       Adjust audio tempo.\n"), nil
	}

	statuses := CheckSystemDeps(context.Background(), cfg, run)
	if len(statuses) != 3 {
		t.Fatalf("expected ffmpeg, ffprobe and filter statuses, got %+v", statuses)
	}
	for _, st := range statuses {
		if !st.Available {
			t.Fatalf("expected %s available, got %q", st.Name, st.Detail)
		}
	}

	cfg.Synthesis.Provider = config.ProviderPiper
	cfg.Synthesis.PiperBinary = "clearly-not-present-piper"
	statuses = CheckSystemDeps(context.Background(), cfg, run)
	var piper bool
	for _, st := range statuses {
		if st.Name == "Piper" {
			piper = true
			if st.Available {
				t.Fatal("expected piper to be missing")
			}
		}
	}
	if !piper {
		t.Fatal("expected piper requirement when provider is piper")
	}
}
