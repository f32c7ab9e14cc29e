package unpack

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gnssprep/internal/services"
)

// Problem describes an archive or archive entry that was skipped.
type Problem struct {
	Archive string
	Entry   string
	Err     error
}

func (p Problem) String() string {
	if p.Entry == "" {
		return fmt.Sprintf("%s: %v", p.Archive, p.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", p.Archive, p.Entry, p.Err)
}

// extractArchive writes every entry of the zip at path below dest. The
// returned error is set only when the archive itself cannot be opened;
// unreadable or unsafe entries are skipped and returned as problems.
func extractArchive(ctx context.Context, path, dest string) (int, []Problem, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return 0, nil, services.Wrap(services.ErrArchiveCorrupt, "unpack", "open archive", filepath.Base(path), err)
	}
	defer reader.Close()

	name := filepath.Base(path)
	var (
		written  int
		problems []Problem
	)
	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return written, problems, err
		}
		target, ok := entryTarget(dest, entry.Name)
		if !ok {
			problems = append(problems, Problem{
				Archive: name,
				Entry:   entry.Name,
				Err:     services.Wrap(services.ErrArchiveCorrupt, "unpack", "extract entry", "path escapes extraction directory", nil),
			})
			continue
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, problems, fmt.Errorf("create %s: %w", target, err)
			}
			continue
		}
		if err := writeEntry(entry, target); err != nil {
			_ = os.Remove(target)
			problems = append(problems, Problem{
				Archive: name,
				Entry:   entry.Name,
				Err:     services.Wrap(services.ErrArchiveCorrupt, "unpack", "extract entry", entry.Name, err),
			})
			continue
		}
		written++
	}
	return written, problems, nil
}

// entryTarget resolves an archive entry name below dest, rejecting names
// that would land outside it.
func entryTarget(dest, name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", false
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

func writeEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
