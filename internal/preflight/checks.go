package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dubline/internal/config"
	"dubline/internal/deps"
	"dubline/internal/synth"
	"dubline/internal/translate"
)

// requiredFilters are the ffmpeg audio filters the reconcile stage invokes.
var requiredFilters = []string{"atempo"}

// CheckTranslator verifies that the translation API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckTranslator(ctx context.Context, cfg *config.Config) Result {
	const name = "Translator"

	t := cfg.Translation
	if strings.TrimSpace(t.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := translate.NewLLMClient(translate.Config{
		APIKey:         t.APIKey,
		BaseURL:        t.BaseURL,
		Model:          t.Model,
		Referer:        t.Referer,
		Title:          t.Title,
		TimeoutSeconds: 30,
		RetryAttempts:  1,
	}, translate.StyleFromConfig(cfg))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckCredentials verifies that every rotation credential resolved to a
// secret. Local providers need no secrets and pass as long as the pool is
// non-empty.
func CheckCredentials(cfg *config.Config) Result {
	const name = "Credentials"

	ids := cfg.CredentialIDs()
	if len(ids) == 0 {
		return Result{Name: name, Detail: "no credentials configured"}
	}
	pairs := len(ids) * len(cfg.Rotation.Models)
	if cfg.Synthesis.Provider != config.ProviderOpenAI {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d pairs (local provider)", pairs)}
	}
	keys := cfg.CredentialKeys()
	var missing []string
	for _, id := range ids {
		if strings.TrimSpace(keys[id]) == "" {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return Result{Name: name, Detail: "missing api key for " + strings.Join(missing, ", ")}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d credentials, %d pairs", len(ids), pairs)}
}

// CheckPiperModels verifies that each rotation model has a voice file.
func CheckPiperModels(cfg *config.Config) []Result {
	piper := synth.NewPiper(cfg.Synthesis.PiperBinary, cfg.Synthesis.PiperModelDir, cfg.Synthesis.PiperSampleRate, nil)
	results := make([]Result, 0, len(cfg.Rotation.Models))
	for _, model := range cfg.Rotation.Models {
		name := "Piper model " + model
		path := piper.ModelPath(model)
		info, err := os.Stat(path)
		switch {
		case err != nil:
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)})
		case info.IsDir() || info.Size() == 0:
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: not a voice file)", path)})
		default:
			results = append(results, Result{Name: name, Passed: true, Detail: path})
		}
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both "check" and "run" use this to avoid duplicating the requirements list.
// The filter probe only runs once ffmpeg itself resolved.
func CheckSystemDeps(ctx context.Context, cfg *config.Config, run deps.Runner) []deps.Status {
	requirements := []deps.Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary()},
		{Name: "FFprobe", Command: cfg.FFprobeBinary()},
	}
	if cfg.Synthesis.Provider == config.ProviderPiper {
		requirements = append(requirements, deps.Requirement{Name: "Piper", Command: cfg.Synthesis.PiperBinary})
	}
	statuses := deps.CheckBinaries(requirements)
	if statuses[0].Available {
		statuses = append(statuses, deps.CheckFFmpegFilters(ctx, cfg.FFmpegBinary(), run, requiredFilters...))
	}
	return statuses
}

// summarizeLLMError produces a human-readable summary for translator health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (translation API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (translation API unreachable)"
	}
	return err.Error()
}
