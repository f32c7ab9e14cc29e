package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gnssprep/internal/config"
	"gnssprep/internal/convert"
	"gnssprep/internal/history"
	"gnssprep/internal/logging"
	"gnssprep/internal/services"
	"gnssprep/internal/services/crx2rnx"
	"gnssprep/internal/services/teqc"
	"gnssprep/internal/split"
	"gnssprep/internal/taskpool"
	"gnssprep/internal/unpack"
)

// Pipeline sequences the unpack, convert and split stages.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	observer  Observer
	recorder  Recorder
	converter crx2rnx.Converter
	filter    teqc.Filterer

	unpacker *unpack.Unpacker
	convert  *convert.Coordinator
	split    *split.Coordinator
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver receives stage and task progress.
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		if observer != nil {
			p.observer = observer
		}
	}
}

// WithRecorder writes runs and outcomes to a history ledger.
func WithRecorder(recorder Recorder) Option {
	return func(p *Pipeline) { p.recorder = recorder }
}

// WithConverter replaces the CRX2RNX client (primarily for tests).
func WithConverter(converter crx2rnx.Converter) Option {
	return func(p *Pipeline) { p.converter = converter }
}

// WithFilterer replaces the teqc client (primarily for tests).
func WithFilterer(filter teqc.Filterer) Option {
	return func(p *Pipeline) { p.filter = filter }
}

// New validates cfg and builds a pipeline around it. Configuration problems
// surface here, before any stage runs.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "configure", "configuration required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "configure", "invalid configuration", err)
	}
	p := &Pipeline{
		cfg:      cfg,
		logger:   logging.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.converter == nil {
		client, err := crx2rnx.New(cfg.Tools.Decompressor, cfg.ToolTimeout())
		if err != nil {
			return nil, err
		}
		p.converter = client
	}
	if p.filter == nil {
		client, err := teqc.New(cfg.Tools.ConstellationFilter, cfg.ToolTimeout())
		if err != nil {
			return nil, err
		}
		p.filter = client
	}

	pool := taskpool.New(cfg.WorkerCount())
	p.unpacker = unpack.New(unpack.WithStagingDir(cfg.Paths.StagingDir), unpack.WithLogger(p.logger))
	p.convert = convert.NewCoordinator(p.converter, pool, p.logger)
	p.split = split.NewCoordinator(p.filter, pool,
		split.WithViews(cfg.Split.Views),
		split.WithTransactional(cfg.Split.Transactional),
		split.WithLogger(p.logger),
	)
	return p, nil
}

// Run executes all three stages for source into the labelled tree under
// outputRoot. Individual file failures are reported in the summary, not as an
// error.
func (p *Pipeline) Run(ctx context.Context, source, outputRoot, label string) (*Summary, error) {
	layout, err := NewLayout(outputRoot, label)
	if err != nil {
		return nil, err
	}
	meta := history.Run{Command: "run", Source: source, Label: layout.Label, OutputRoot: layout.Root}
	return p.track(ctx, meta, layout.Base, func(ctx context.Context, summary *Summary) error {
		summary.Layout = &layout
		if err := p.runUnpack(ctx, summary, source, layout.RawDir); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.runConvert(ctx, summary, layout.RawDir); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.runSplit(ctx, summary, layout.RawDir, layout.SplitDir)
	})
}

// Unpack runs only the unpack stage.
func (p *Pipeline) Unpack(ctx context.Context, source, dest string) (*Summary, error) {
	meta := history.Run{Command: StageUnpack, Source: source, OutputRoot: dest}
	return p.track(ctx, meta, dest, func(ctx context.Context, summary *Summary) error {
		return p.runUnpack(ctx, summary, source, dest)
	})
}

// Convert runs only the convert stage over dir.
func (p *Pipeline) Convert(ctx context.Context, dir string) (*Summary, error) {
	meta := history.Run{Command: StageConvert, Source: dir, OutputRoot: dir}
	return p.track(ctx, meta, dir, func(ctx context.Context, summary *Summary) error {
		return p.runConvert(ctx, summary, dir)
	})
}

// Split runs only the split stage, reading dir and writing under outputRoot.
func (p *Pipeline) Split(ctx context.Context, dir, outputRoot string) (*Summary, error) {
	meta := history.Run{Command: StageSplit, Source: dir, OutputRoot: outputRoot}
	return p.track(ctx, meta, outputRoot, func(ctx context.Context, summary *Summary) error {
		return p.runSplit(ctx, summary, dir, outputRoot)
	})
}

// track owns the parts shared by every command: the output lock, the run
// identifier, history bookkeeping and the final status.
func (p *Pipeline) track(ctx context.Context, meta history.Run, target string, body func(context.Context, *Summary) error) (*Summary, error) {
	lock, err := acquireOutputLock(p.cfg.Paths.StateDir, target)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	meta.ID = uuid.NewString()
	meta.StartedAt = time.Now()
	ctx = services.WithRunID(ctx, meta.ID)
	logger := logging.WithContext(ctx, p.logger)

	summary := &Summary{
		RunID:      meta.ID,
		Command:    meta.Command,
		OutputRoot: meta.OutputRoot,
		StartedAt:  meta.StartedAt,
	}
	if p.recorder != nil {
		if err := p.recorder.StartRun(ctx, meta); err != nil {
			logging.WarnWithContext(logger, "failed to record run start", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run will be missing from history"),
			)
		}
	}
	logger.Info("run started",
		logging.String("command", meta.Command),
		logging.String("source", meta.Source),
		logging.String("output", target),
		logging.String(logging.FieldEventType, "run_start"),
	)

	runErr := body(ctx, summary)
	summary.FinishedAt = time.Now()

	status := history.StatusCompleted
	message := ""
	switch {
	case ctx.Err() != nil || errors.Is(runErr, context.Canceled):
		summary.Interrupted = true
		status = history.StatusInterrupted
		message = "interrupted"
		if runErr == nil {
			runErr = ctx.Err()
		}
	case runErr != nil:
		status = history.StatusFailed
		message = runErr.Error()
		if services.IsFatal(runErr) {
			logging.ErrorWithContext(logger, "run aborted", "run_aborted",
				logging.Error(runErr),
				logging.String(logging.FieldErrorKind, services.Kind(runErr)),
				logging.String(logging.FieldErrorHint, "check the source path and configuration, then rerun"),
			)
		} else {
			logging.WarnWithContext(logger, "run stopped early", "run_stopped",
				logging.Error(runErr),
				logging.String(logging.FieldErrorKind, services.Kind(runErr)),
				logging.String(logging.FieldImpact, "later stages did not run; outputs already written are kept"),
			)
		}
	}
	if p.recorder != nil {
		// The run context may already be cancelled; the final status must still land.
		finishCtx := context.WithoutCancel(ctx)
		if err := p.recorder.FinishRun(finishCtx, meta.ID, status, message); err != nil {
			logging.WarnWithContext(logger, "failed to record run result", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history shows the run as still running"),
			)
		}
	}

	totals := summary.Totals()
	logger.Info("run finished",
		logging.String("status", string(status)),
		logging.Int("succeeded", totals.Succeeded),
		logging.Int("failed", totals.Failed),
		logging.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

func (p *Pipeline) runUnpack(ctx context.Context, summary *Summary, source, dest string) error {
	p.observer.StageStarted(StageUnpack, source)
	start := time.Now()
	report, err := p.unpacker.Unpack(ctx, source, dest)
	stage := StageReport{Stage: StageUnpack, Dir: source, Elapsed: time.Since(start)}

	seq := 0
	emit := func(o taskpool.Outcome) {
		seq++
		o.Seq = seq
		stage.Outcomes = append(stage.Outcomes, o)
		p.taskFinished(ctx, StageUnpack, o)
	}
	for _, name := range report.Moved {
		emit(taskpool.Outcome{Input: name, Artifacts: []string{name}})
	}
	for _, problem := range report.Skipped {
		input := problem.Archive
		if problem.Entry != "" {
			input = fmt.Sprintf("%s:%s", problem.Archive, problem.Entry)
		}
		emit(taskpool.Outcome{Input: input, Err: problem.Err})
	}
	summary.Stages = append(summary.Stages, stage)
	p.observer.StageFinished(stage)
	return err
}

func (p *Pipeline) runConvert(ctx context.Context, summary *Summary, dir string) error {
	p.observer.StageStarted(StageConvert, dir)
	start := time.Now()
	result, err := p.convert.ConvertAll(ctx, dir, func(o taskpool.Outcome) {
		p.taskFinished(ctx, StageConvert, o)
	})
	stage := StageReport{Stage: StageConvert, Dir: dir, Outcomes: result.Outcomes, Elapsed: time.Since(start)}
	summary.Stages = append(summary.Stages, stage)
	p.observer.StageFinished(stage)
	return err
}

func (p *Pipeline) runSplit(ctx context.Context, summary *Summary, dir, outputRoot string) error {
	p.observer.StageStarted(StageSplit, dir)
	start := time.Now()
	result, err := p.split.SplitAll(ctx, dir, outputRoot, func(o taskpool.Outcome) {
		p.taskFinished(ctx, StageSplit, o)
	})
	stage := StageReport{Stage: StageSplit, Dir: dir, Outcomes: result.Outcomes, Elapsed: time.Since(start)}
	summary.Stages = append(summary.Stages, stage)
	p.observer.StageFinished(stage)
	return err
}

func (p *Pipeline) taskFinished(ctx context.Context, stage string, o taskpool.Outcome) {
	p.observer.TaskFinished(stage, o)
	if p.recorder == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	task := history.Task{
		RunID:     runID,
		Stage:     stage,
		Input:     o.Input,
		Succeeded: o.Succeeded(),
		Artifacts: o.Artifacts,
		Elapsed:   o.Elapsed,
		Seq:       o.Seq,
	}
	if o.Err != nil {
		task.ErrorKind = services.Kind(o.Err)
		task.Error = o.Err.Error()
	}
	if err := p.recorder.RecordTask(context.WithoutCancel(ctx), task); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "failed to record task outcome", "history_write_failed",
			logging.String(logging.FieldFile, o.Input),
			logging.Error(err),
			logging.String(logging.FieldImpact, "history counts for this run are incomplete"),
		)
	}
}
