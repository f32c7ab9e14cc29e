package testsupport

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ZipBytes builds an in-memory zip archive. Entries are written in name order.
func ZipBytes(t testing.TB, files map[string][]byte) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := f.Write(files[name]); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// SurveyBundle writes the canonical test bundle to dir/bundle.zip: one nested
// archive holding ABC01220.22d and one corrupt nested archive.
func SurveyBundle(t testing.TB, dir string) string {
	t.Helper()
	station := ZipBytes(t, map[string][]byte{
		"ABC0/ABC01220.22d": []byte("hatanaka observation data\n"),
	})
	return WriteFile(t, filepath.Join(dir, "bundle.zip"), ZipBytes(t, map[string][]byte{
		"ABC01220.zip": station,
		"corrupt.zip":  []byte("definitely not a zip archive"),
	}))
}

// ListNames returns the sorted entry names of dir, or nil if it is missing.
func ListNames(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
