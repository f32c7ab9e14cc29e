package staging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gnssprep/internal/logging"
)

func TestAcquireCreatesBothDirectories(t *testing.T) {
	parent := t.TempDir()
	area, err := Acquire(parent, logging.NewNop())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = area.Release() })

	if !strings.HasPrefix(filepath.Base(area.Root), runPrefix) {
		t.Fatalf("unexpected root name %q", area.Root)
	}
	for _, dir := range []string{area.Archives, area.Extracted} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if !inUse(area.Root) {
		t.Fatal("acquired area should report in use")
	}
}

func TestReleaseRemovesEverything(t *testing.T) {
	parent := t.TempDir()
	area, err := Acquire(parent, logging.NewNop())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	nested := filepath.Join(area.Extracted, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "x.22d"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := area.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(area.Root); !os.IsNotExist(err) {
		t.Fatalf("expected area removed, stat err=%v", err)
	}
	if err := area.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	entries, _ := os.ReadDir(parent)
	if len(entries) != 0 {
		t.Fatalf("expected empty parent, got %d entries", len(entries))
	}
}

func TestAcquireDistinctAreas(t *testing.T) {
	parent := t.TempDir()
	a, err := Acquire(parent, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()
	b, err := Acquire(parent, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Release()
	if a.Root == b.Root {
		t.Fatal("expected distinct roots")
	}
}
