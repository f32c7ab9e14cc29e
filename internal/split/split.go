// Package split derives constellation subsets from decompressed observation
// files.
//
// Each file is run through the constellation filter once per configured
// view, and each run's standard output becomes <outputRoot>/<VIEW>/<VIEW>_<name>.
// Output is written under a ".partial" name and renamed once its invocation
// succeeds, so a failed view never leaves a file in its directory. The first
// failing view ends the task; views that already succeeded keep their files
// unless the coordinator is transactional, in which case nothing is renamed
// until every view has succeeded. Only a failure after at least one published
// view is reported as a partial split.
package split

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gnssprep/internal/config"
	"gnssprep/internal/fileutil"
	"gnssprep/internal/logging"
	"gnssprep/internal/obsfile"
	"gnssprep/internal/services"
	"gnssprep/internal/services/teqc"
	"gnssprep/internal/taskpool"
)

const (
	stageName     = "split"
	partialSuffix = ".partial"
)

// Result is the outcome of one SplitAll call.
type Result struct {
	Dir        string
	OutputRoot string
	Outcomes   []taskpool.Outcome
}

// NothingToDo reports whether the directory held no decompressed files.
func (r Result) NothingToDo() bool { return len(r.Outcomes) == 0 }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithViews replaces the default constellation views.
func WithViews(views []config.View) Option {
	return func(c *Coordinator) {
		if len(views) > 0 {
			c.views = append([]config.View(nil), views...)
		}
	}
}

// WithTransactional keeps all of a file's outputs under their partial names
// until every view has succeeded.
func WithTransactional(enabled bool) Option {
	return func(c *Coordinator) { c.transactional = enabled }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Coordinator dispatches one split task per decompressed file.
type Coordinator struct {
	filter        teqc.Filterer
	pool          *taskpool.Pool
	views         []config.View
	transactional bool
	logger        *slog.Logger
}

// NewCoordinator wires a constellation filter to a worker pool.
func NewCoordinator(filter teqc.Filterer, pool *taskpool.Pool, opts ...Option) *Coordinator {
	if pool == nil {
		pool = taskpool.New(0)
	}
	c := &Coordinator{
		filter: filter,
		pool:   pool,
		views:  config.DefaultViews(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, stageName)
	return c
}

// SplitAll filters every decompressed observation file directly inside dir
// into one subdirectory of outputRoot per view. The view directories are
// created even when there is nothing to split. The returned error is set only
// when the directories cannot be created or dir cannot be read.
func (c *Coordinator) SplitAll(ctx context.Context, dir, outputRoot string, onDone func(taskpool.Outcome)) (Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, c.logger)
	result := Result{Dir: dir, OutputRoot: outputRoot}

	for _, view := range c.views {
		if err := fileutil.EnsureDir(filepath.Join(outputRoot, view.Name)); err != nil {
			return result, services.Wrap(services.ErrConfiguration, stageName, "create view directory", view.Name, err)
		}
	}

	names, err := fileutil.ListFiles(dir, obsfile.IsDecompressed)
	if err != nil {
		return result, services.Wrap(services.ErrConfiguration, stageName, "list inputs", dir, err)
	}
	if len(names) == 0 {
		noFiles := services.Wrap(services.ErrNoEligibleFiles, stageName, "list inputs", dir, nil)
		logging.WarnWithContext(logger, "nothing to do: no decompressed observation files", "no_eligible_files",
			logging.String("dir", dir),
			logging.Error(noFiles),
			logging.String(logging.FieldErrorKind, services.Kind(noFiles)),
			logging.String(logging.FieldErrorHint, "expected files named like ABC01220.22o; run convert first"),
			logging.String(logging.FieldImpact, "no files split"),
		)
		return result, nil
	}

	logger.Info("splitting observation files by constellation",
		logging.Int("files", len(names)),
		logging.Int("views", len(c.views)),
		logging.Int("workers", c.pool.Workers()),
		logging.Bool("transactional", c.transactional),
		logging.String(logging.FieldEventType, "stage_start"),
	)

	tasks := make([]taskpool.Task, 0, len(names))
	for _, name := range names {
		input := filepath.Join(dir, name)
		tasks = append(tasks, taskpool.Task{
			Input: name,
			Run: func(ctx context.Context) ([]string, error) {
				return c.splitFile(ctx, input, outputRoot)
			},
		})
	}

	result.Outcomes = c.pool.Run(ctx, tasks, func(o taskpool.Outcome) {
		logOutcome(logger, o)
		if onDone != nil {
			onDone(o)
		}
	})

	summary := taskpool.Summarize(result.Outcomes)
	logger.Info("split finished",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.String("output_root", outputRoot),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return result, nil
}

type pending struct {
	partial string
	final   string
	rel     string
}

func (c *Coordinator) splitFile(ctx context.Context, input, outputRoot string) ([]string, error) {
	name := filepath.Base(input)
	var (
		done     []string
		deferred []pending
	)
	for _, view := range c.views {
		subset := obsfile.SubsetName(view.Name, name)
		p := pending{
			partial: filepath.Join(outputRoot, view.Name, subset+partialSuffix),
			final:   filepath.Join(outputRoot, view.Name, subset),
			rel:     filepath.Join(view.Name, subset),
		}
		if err := c.filterTo(ctx, input, view.Flags, p.partial); err != nil {
			_ = os.Remove(p.partial)
			for _, d := range deferred {
				_ = os.Remove(d.partial)
			}
			return nil, splitFailure(done, view.Name, name, err)
		}
		if c.transactional {
			deferred = append(deferred, p)
			continue
		}
		if err := os.Rename(p.partial, p.final); err != nil {
			_ = os.Remove(p.partial)
			return nil, splitFailure(done, view.Name, name, err)
		}
		done = append(done, p.rel)
	}

	var renameErr error
	for _, p := range deferred {
		if renameErr != nil {
			_ = os.Remove(p.partial)
			continue
		}
		if err := os.Rename(p.partial, p.final); err != nil {
			_ = os.Remove(p.partial)
			renameErr = err
			continue
		}
		done = append(done, p.rel)
	}
	if renameErr != nil {
		return nil, splitFailure(done, "commit", name, renameErr)
	}
	return done, nil
}

// splitFailure tags err as a partial split only when some view of the file
// was already published.
func splitFailure(done []string, step, name string, err error) error {
	if len(done) > 0 {
		return services.Wrap(services.ErrPartialSplit, stageName, step, name, err)
	}
	return fmt.Errorf("%s: %s: %s: %w", stageName, step, name, err)
}

func (c *Coordinator) filterTo(ctx context.Context, input string, flags []string, target string) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	filterErr := c.filter.Filter(ctx, input, flags, out)
	closeErr := out.Close()
	return errors.Join(filterErr, closeErr)
}

func logOutcome(logger *slog.Logger, o taskpool.Outcome) {
	logger = logger.With(logging.String(logging.FieldCorrelationID, o.RequestID))
	if o.Succeeded() {
		logger.Info("split "+o.Input,
			logging.String(logging.FieldFile, o.Input),
			logging.Strings("outputs", o.Artifacts),
			logging.Duration("elapsed", o.Elapsed),
			logging.String(logging.FieldEventType, "file_split"),
		)
		return
	}
	logging.WarnWithContext(logger, "split failed", "file_split_failed",
		logging.String(logging.FieldFile, o.Input),
		logging.Error(o.Err),
		logging.String(logging.FieldErrorHint, "the decompressed file may be corrupt; check the teqc diagnostic"),
		logging.String(logging.FieldImpact, "views for this file are incomplete"),
	)
}
