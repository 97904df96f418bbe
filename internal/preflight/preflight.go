package preflight

import (
	"context"

	"dubline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCredentials(cfg),
	}

	if cfg.Synthesis.Provider == config.ProviderPiper {
		results = append(results, CheckPiperModels(cfg)...)
	}

	if cfg.Translation.Enabled {
		results = append(results, CheckTranslator(ctx, cfg))
	}

	return results
}
