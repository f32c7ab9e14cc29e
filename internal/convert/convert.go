// Package convert fans CRX2RNX out over every raw observation file in a
// directory.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"gnssprep/internal/fileutil"
	"gnssprep/internal/logging"
	"gnssprep/internal/obsfile"
	"gnssprep/internal/services"
	"gnssprep/internal/services/crx2rnx"
	"gnssprep/internal/taskpool"
)

const stageName = "convert"

// Result is the outcome of one ConvertAll call.
type Result struct {
	Dir      string
	Outcomes []taskpool.Outcome
}

// NothingToDo reports whether the directory held no raw observation files.
func (r Result) NothingToDo() bool { return len(r.Outcomes) == 0 }

// Coordinator dispatches one conversion task per raw observation file.
type Coordinator struct {
	converter crx2rnx.Converter
	pool      *taskpool.Pool
	logger    *slog.Logger
}

// NewCoordinator wires a converter to a worker pool.
func NewCoordinator(converter crx2rnx.Converter, pool *taskpool.Pool, logger *slog.Logger) *Coordinator {
	if pool == nil {
		pool = taskpool.New(0)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{converter: converter, pool: pool, logger: logging.NewComponentLogger(logger, stageName)}
}

// ConvertAll decompresses every raw observation file directly inside dir.
// Decompressed files are written next to their sources. onDone receives each
// outcome as its task finishes. Per-file failures are reported in outcomes;
// the returned error is set only when dir cannot be read.
func (c *Coordinator) ConvertAll(ctx context.Context, dir string, onDone func(taskpool.Outcome)) (Result, error) {
	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, c.logger)
	result := Result{Dir: dir}

	names, err := fileutil.ListFiles(dir, obsfile.IsRaw)
	if err != nil {
		return result, services.Wrap(services.ErrConfiguration, stageName, "list inputs", dir, err)
	}
	if len(names) == 0 {
		noFiles := services.Wrap(services.ErrNoEligibleFiles, stageName, "list inputs", dir, nil)
		logging.WarnWithContext(logger, "nothing to do: no raw observation files", "no_eligible_files",
			logging.String("dir", dir),
			logging.Error(noFiles),
			logging.String(logging.FieldErrorKind, services.Kind(noFiles)),
			logging.String(logging.FieldErrorHint, "expected files named like ABC01220.22d"),
			logging.String(logging.FieldImpact, "no files converted"),
		)
		return result, nil
	}

	logger.Info("converting raw observation files",
		logging.Int("files", len(names)),
		logging.Int("workers", c.pool.Workers()),
		logging.String(logging.FieldEventType, "stage_start"),
	)

	tasks := make([]taskpool.Task, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		tasks = append(tasks, taskpool.Task{
			Input: name,
			Run: func(ctx context.Context) ([]string, error) {
				out, err := c.converter.Convert(ctx, path)
				if err != nil {
					return nil, err
				}
				return []string{out}, nil
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
	logger.Info("conversion finished",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return result, nil
}

func logOutcome(logger *slog.Logger, o taskpool.Outcome) {
	logger = logger.With(logging.String(logging.FieldCorrelationID, o.RequestID))
	if o.Succeeded() {
		attrs := []logging.Attr{
			logging.String(logging.FieldFile, o.Input),
			logging.Duration("elapsed", o.Elapsed),
			logging.String(logging.FieldEventType, "file_converted"),
		}
		logger.Info(fmt.Sprintf("converted %s -> %s", o.Input, o.Artifacts[0]), logging.Args(append(attrs, sessionAttrs(o.Input)...)...)...)
		return
	}
	logging.WarnWithContext(logger, "conversion failed", "file_convert_failed",
		logging.String(logging.FieldFile, o.Input),
		logging.Error(o.Err),
		logging.String(logging.FieldErrorHint, "check the CRX2RNX binary and the input file"),
		logging.String(logging.FieldImpact, "file skipped; other files unaffected"),
	)
}

// sessionAttrs describes the observation session encoded in a RINEX 2 short
// file name. Names that do not follow the convention yield nothing.
func sessionAttrs(name string) []logging.Attr {
	n, ok := obsfile.Parse(name)
	if !ok || n.Station == "" {
		return nil
	}
	attrs := []logging.Attr{
		logging.String("station", n.Station),
		logging.String("session", n.Session),
	}
	if date, ok := n.Date(); ok {
		attrs = append(attrs, logging.String("session_date", date.Format("2006-01-02")))
	}
	return attrs
}
