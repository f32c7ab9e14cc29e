package unpack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gnssprep/internal/fileutil"
	"gnssprep/internal/logging"
	"gnssprep/internal/obsfile"
	"gnssprep/internal/services"
	"gnssprep/internal/staging"
)

const stageName = "unpack"

// Report summarizes one Unpack call.
type Report struct {
	Source      string
	Destination string
	// Archives is the number of archives found directly in the first staging directory.
	Archives int
	// Moved lists the file names placed in Destination, sorted.
	Moved   []string
	Skipped []Problem
}

// Unpacker extracts archive bundles through a run-scoped staging area.
type Unpacker struct {
	stagingDir string
	logger     *slog.Logger
}

// Option configures an Unpacker.
type Option func(*Unpacker)

// WithStagingDir sets the parent directory for staging areas. The system
// temporary directory is used when unset.
func WithStagingDir(dir string) Option {
	return func(u *Unpacker) { u.stagingDir = dir }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Unpacker) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// New constructs an Unpacker.
func New(opts ...Option) *Unpacker {
	u := &Unpacker{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Unpack collects every raw observation file reachable from source into
// destination. The staging area is gone when Unpack returns.
func (u *Unpacker) Unpack(ctx context.Context, source, destination string) (report Report, err error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(u.logger, stageName))
	report = Report{Source: source, Destination: destination}

	kind, err := classifySource(source)
	if err != nil {
		return report, err
	}
	if err := fileutil.EnsureDir(destination); err != nil {
		return report, services.Wrap(services.ErrConfiguration, stageName, "create destination", destination, err)
	}

	area, err := staging.Acquire(u.stagingDir, logger)
	if err != nil {
		return report, err
	}
	defer func() {
		if releaseErr := area.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	switch kind {
	case sourceArchive:
		logger.Info("extracting archive",
			logging.String("archive", filepath.Base(source)),
			logging.String(logging.FieldEventType, "archive_extract"),
		)
		_, problems, openErr := extractArchive(ctx, source, area.Archives)
		if openErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			return report, services.Wrap(services.ErrInvalidSource, stageName, "open source", source, openErr)
		}
		report.Skipped = append(report.Skipped, warnProblems(logger, problems)...)
	case sourceDirectory:
		copied, err := copyArchives(source, area.Archives)
		if err != nil {
			return report, err
		}
		logger.Info("copied archives from directory",
			logging.String("source", source),
			logging.Int("archives", copied),
			logging.String(logging.FieldEventType, "archive_copy"),
		)
	}

	nested, err := fileutil.ListFiles(area.Archives, obsfile.IsArchive)
	if err != nil {
		return report, fmt.Errorf("list staged archives: %w", err)
	}
	report.Archives = len(nested)
	for _, name := range nested {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		path := filepath.Join(area.Archives, name)
		count, problems, openErr := extractArchive(ctx, path, area.Extracted)
		if openErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			report.Skipped = append(report.Skipped, warnProblems(logger, []Problem{{Archive: name, Err: openErr}})...)
			continue
		}
		report.Skipped = append(report.Skipped, warnProblems(logger, problems)...)
		logger.Info("archive extracted",
			logging.String("archive", name),
			logging.Int("entries", count),
			logging.String(logging.FieldEventType, "archive_extracted"),
		)
	}

	moved, err := collectRaw(ctx, area.Extracted, destination, logger)
	report.Moved = moved
	if err != nil {
		return report, err
	}

	if len(moved) == 0 {
		noFiles := services.Wrap(services.ErrNoEligibleFiles, stageName, "move raw files", source, nil)
		logging.WarnWithContext(logger, "no raw observation files found", "no_eligible_files",
			logging.String("source", source),
			logging.Error(noFiles),
			logging.String(logging.FieldErrorKind, services.Kind(noFiles)),
			logging.String(logging.FieldErrorHint, "check that the bundle contains *.yyd files inside nested zip archives"),
			logging.String(logging.FieldImpact, "conversion and split stages have nothing to do"),
		)
	}
	logger.Info("unpack complete",
		logging.Int("archives", report.Archives),
		logging.Int("moved", len(moved)),
		logging.Int("skipped", len(report.Skipped)),
		logging.String("destination", destination),
		logging.String(logging.FieldEventType, "unpack_complete"),
	)
	return report, nil
}

func warnProblems(logger *slog.Logger, problems []Problem) []Problem {
	for _, p := range problems {
		attrs := []logging.Attr{
			logging.String("archive", p.Archive),
			logging.Error(p.Err),
			logging.String(logging.FieldErrorHint, "re-download the archive if its files are needed"),
			logging.String(logging.FieldImpact, "files inside the archive are skipped"),
		}
		if p.Entry != "" {
			attrs = append(attrs, logging.String("entry", p.Entry))
		}
		logging.WarnWithContext(logger, "skipping unreadable archive content", "archive_corrupt", attrs...)
	}
	return problems
}

type sourceKind int

const (
	sourceArchive sourceKind = iota + 1
	sourceDirectory
)

func classifySource(source string) (sourceKind, error) {
	if strings.TrimSpace(source) == "" {
		return 0, services.Wrap(services.ErrInvalidSource, stageName, "inspect source", "source path is empty", nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return 0, services.Wrap(services.ErrInvalidSource, stageName, "inspect source", source, err)
	}
	switch {
	case info.Mode().IsRegular() && obsfile.IsArchive(info.Name()):
		return sourceArchive, nil
	case info.IsDir():
		archives, err := fileutil.ListFiles(source, obsfile.IsArchive)
		if err != nil {
			return 0, services.Wrap(services.ErrInvalidSource, stageName, "inspect source", source, err)
		}
		if len(archives) == 0 {
			return 0, services.Wrap(services.ErrInvalidSource, stageName, "inspect source", "directory contains no zip archives", nil)
		}
		return sourceDirectory, nil
	default:
		return 0, services.Wrap(services.ErrInvalidSource, stageName, "inspect source", "not a zip archive or a directory of zip archives", nil)
	}
}

func copyArchives(source, dest string) (int, error) {
	names, err := fileutil.ListFiles(source, obsfile.IsArchive)
	if err != nil {
		return 0, fmt.Errorf("list source archives: %w", err)
	}
	for _, name := range names {
		if err := fileutil.CopyFile(filepath.Join(source, name), filepath.Join(dest, name)); err != nil {
			return 0, fmt.Errorf("copy %s into staging: %w", name, err)
		}
	}
	return len(names), nil
}

// collectRaw moves every raw observation file below root into destination,
// flattening the tree. A later file with the same name replaces an earlier one.
func collectRaw(ctx context.Context, root, destination string, logger *slog.Logger) ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || !obsfile.IsRaw(d.Name()) {
			return nil
		}
		target := filepath.Join(destination, d.Name())
		if err := fileutil.MoveFile(path, target); err != nil {
			return fmt.Errorf("move %s: %w", d.Name(), err)
		}
		if _, dup := seen[d.Name()]; dup {
			logger.Warn("raw observation file replaced by a later copy",
				logging.String(logging.FieldFile, d.Name()),
				logging.String(logging.FieldEventType, "raw_file_replaced"),
				logging.String(logging.FieldImpact, "the last copy found wins"),
			)
		}
		seen[d.Name()] = struct{}{}
		logger.Debug("moved raw observation file",
			logging.String(logging.FieldFile, d.Name()),
			logging.String(logging.FieldEventType, "raw_file_moved"),
		)
		return nil
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("collect raw observation files: %w", err)
	}
	return names, err
}
