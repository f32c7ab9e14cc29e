package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gnssprep/internal/logging"
)

func makeRunDir(t *testing.T, parent, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if age > 0 {
		when := time.Now().Add(-age)
		if err := os.Chtimes(dir, when, when); err != nil {
			t.Fatalf("set time: %v", err)
		}
	}
	return dir
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldRunDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir := makeRunDir(t, tmpDir, "run-old", 2*time.Hour)
	recentDir := makeRunDir(t, tmpDir, "run-recent", 0)
	foreign := makeRunDir(t, tmpDir, "keep-me", 2*time.Hour)

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old directory should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent directory should still exist")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("directories without the run prefix are not ours to remove")
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	tmpDir := t.TempDir()

	oldFile := filepath.Join(tmpDir, "run-file.txt")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
	if _, err := os.Stat(oldFile); err != nil {
		t.Error("file should not have been removed")
	}
}

func TestCleanAllSkipsAreasInUse(t *testing.T) {
	tmpDir := t.TempDir()
	area, err := Acquire(tmpDir, logging.NewNop())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer area.Release()
	abandoned := makeRunDir(t, tmpDir, "run-abandoned", 0)

	result := CleanAll(context.Background(), tmpDir, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != abandoned {
		t.Fatalf("expected abandoned dir removed, got %v", result.Removed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != area.Root {
		t.Fatalf("expected live area skipped, got %v", result.Skipped)
	}
	if _, err := os.Stat(area.Archives); err != nil {
		t.Fatalf("live area should survive: %v", err)
	}
}

func TestListDirectoriesInvalidPaths(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		dirs, err := ListDirectories(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if dirs != nil {
			t.Errorf("expected nil for path %q, got %v", path, dirs)
		}
	}
}

func TestListDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	dir1 := makeRunDir(t, tmpDir, "run-1", 0)
	makeRunDir(t, tmpDir, "run-2", 0)
	makeRunDir(t, tmpDir, "other", 0)

	if err := os.WriteFile(filepath.Join(tmpDir, "not-a-dir.txt"), []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir1, "data.bin"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("create inner file: %v", err)
	}

	dirs, err := ListDirectories(tmpDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 directories, got %d", len(dirs))
	}

	var foundDir1 bool
	for _, d := range dirs {
		if d.Name == "run-1" {
			foundDir1 = true
			if d.Size != 5 {
				t.Errorf("run-1 size = %d, want 5", d.Size)
			}
			if d.Path != dir1 {
				t.Errorf("Path = %q, want %q", d.Path, dir1)
			}
			if d.ModTime.IsZero() {
				t.Error("ModTime should not be zero")
			}
			if d.InUse {
				t.Error("unlocked directory reported in use")
			}
		}
	}
	if !foundDir1 {
		t.Error("did not find run-1 in results")
	}
}
