package preflight

import (
	"errors"
	"fmt"
	"strings"

	"gnssprep/internal/config"
	"gnssprep/internal/deps"
	"gnssprep/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check for cfg. outputRoot, when set, is checked in
// place of the configured default output root.
func RunAll(cfg *config.Config, outputRoot string) []Result {
	if cfg == nil {
		return nil
	}
	if strings.TrimSpace(outputRoot) == "" {
		outputRoot = cfg.Paths.OutputRoot
	}

	results := make([]Result, 0, 5)
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, FromDependency(status))
	}
	results = append(results,
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckCreatableDirectory("Output root", outputRoot),
	)
	return results
}

// FromDependency converts a dependency status into a check result.
func FromDependency(status deps.Status) Result {
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: status.Resolved}
	}
	return Result{Name: status.Name, Passed: status.Optional, Detail: status.Detail}
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

// Error folds failed results into a single configuration error, or nil when
// every check passed.
func Error(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, r := range failed {
		errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "", fmt.Sprintf("%d check(s) failed", len(failed)), errors.Join(errs...))
}
