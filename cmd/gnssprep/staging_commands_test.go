package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "staging", "list")
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "No staging directories found")

	leftover := filepath.Join(env.cfg.Paths.StagingDir, "run-leftover")
	if err := os.MkdirAll(filepath.Join(leftover, "archives"), 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(leftover, old, old); err != nil {
		t.Fatal(err)
	}

	out, _, err = runCLI(t, env.configPath, "staging", "list")
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "run-leftover")

	out, _, err = runCLI(t, env.configPath, "staging", "clean")
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 stale directories")
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Fatalf("expected leftover to be removed, stat err=%v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		5 * time.Minute: "5m",
		3 * time.Hour:   "3h",
		50 * time.Hour:  "2d",
	}
	for d, want := range cases {
		if got := formatDuration(d); got != want {
			t.Fatalf("formatDuration(%s) = %q, want %q", d, got, want)
		}
	}
}
