package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	StatusRunning     RunStatus = "running"
	StatusCompleted   RunStatus = "completed"
	StatusFailed      RunStatus = "failed"
	StatusInterrupted RunStatus = "interrupted"
)

// ErrRunNotFound is returned when no run matches an identifier.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRun is returned when a short identifier matches several runs.
var ErrAmbiguousRun = errors.New("run identifier is ambiguous")

// Run is one invocation of a pipeline command.
type Run struct {
	ID         string
	Command    string
	Source     string
	Label      string
	OutputRoot string
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Task is one recorded per-file outcome.
type Task struct {
	RunID      string
	Stage      string
	Input      string
	Succeeded  bool
	Artifacts  []string
	ErrorKind  string
	Error      string
	Elapsed    time.Duration
	Seq        int
	RecordedAt time.Time
}

// StageCount tallies task outcomes for one stage of a run.
type StageCount struct {
	Stage     string
	Succeeded int
	Failed    int
}

// RunSummary pairs a run with its per-stage counts.
type RunSummary struct {
	Run
	Stages []StageCount
}

// Totals sums the per-stage counts.
func (r RunSummary) Totals() (succeeded, failed int) {
	for _, s := range r.Stages {
		succeeded += s.Succeeded
		failed += s.Failed
	}
	return succeeded, failed
}

const runColumns = "id, command, source, label, output_root, status, error_message, started_at, finished_at"

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		run.ID, run.Command, nullableString(run.Source), nullableString(run.Label),
		nullableString(run.OutputRoot), string(run.Status), nullableString(run.Error), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, message string) error {
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(status), nullableString(message), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// RecordTask appends a task outcome to a run.
func (s *Store) RecordTask(ctx context.Context, task Task) error {
	if task.RecordedAt.IsZero() {
		task.RecordedAt = time.Now()
	}
	var artifacts any
	if len(task.Artifacts) > 0 {
		data, err := json.Marshal(task.Artifacts)
		if err != nil {
			return fmt.Errorf("encode artifacts: %w", err)
		}
		artifacts = string(data)
	}
	_, err := s.exec(ctx,
		`INSERT INTO task_outcomes (run_id, stage, input, succeeded, artifacts_json, error_kind, error_message, elapsed_ms, seq, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.RunID, task.Stage, task.Input, boolToInt(task.Succeeded), artifacts,
		nullableString(task.ErrorKind), nullableString(task.Error),
		task.Elapsed.Milliseconds(), task.Seq, formatTime(task.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task outcome: %w", err)
	}
	return nil
}

// GetRun fetches a run by full identifier or unique prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrRunNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC, started_at DESC LIMIT 2`,
		id, stripLikeWildcards(id)+"%", id,
	)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case runs[0].ID == id || len(runs) == 1:
		return &runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}
}

// ListRuns returns the most recent runs first, with per-stage counts.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		counts, err := s.StageCounts(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, RunSummary{Run: run, Stages: counts})
	}
	return summaries, nil
}

// StageCounts tallies a run's outcomes per stage in pipeline order.
func (s *Store) StageCounts(ctx context.Context, runID string) ([]StageCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, SUM(succeeded), SUM(1 - succeeded), MIN(id)
		   FROM task_outcomes WHERE run_id = ? GROUP BY stage ORDER BY MIN(id)`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	var counts []StageCount
	for rows.Next() {
		var (
			c     StageCount
			first int64
		)
		if err := rows.Scan(&c.Stage, &c.Succeeded, &c.Failed, &first); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Tasks returns a run's task outcomes in recording order.
func (s *Store) Tasks(ctx context.Context, runID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, input, succeeded, artifacts_json, error_kind, error_message, elapsed_ms, seq, recorded_at
		   FROM task_outcomes WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var (
			t                               Task
			succeeded                       int
			artifacts, errorKind, errorText sql.NullString
			elapsedMS                       int64
			recordedAt                      string
		)
		if err := rows.Scan(&t.RunID, &t.Stage, &t.Input, &succeeded, &artifacts, &errorKind, &errorText, &elapsedMS, &t.Seq, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Succeeded = succeeded != 0
		t.ErrorKind = errorKind.String
		t.Error = errorText.String
		t.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if artifacts.Valid && artifacts.String != "" {
			if err := json.Unmarshal([]byte(artifacts.String), &t.Artifacts); err != nil {
				return nil, fmt.Errorf("decode artifacts: %w", err)
			}
		}
		if ts, err := parseTimeString(recordedAt); err == nil {
			t.RecordedAt = ts
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                                       Run
		status, startedAt                         string
		source, label, outputRoot, message, ended sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Command, &source, &label, &outputRoot, &status, &message, &startedAt, &ended); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Source = source.String
	run.Label = label.String
	run.OutputRoot = outputRoot.String
	run.Status = RunStatus(status)
	run.Error = message.String
	if ts, err := parseTimeString(startedAt); err == nil {
		run.StartedAt = ts
	}
	if ended.Valid {
		if ts, err := parseTimeString(ended.String); err == nil {
			run.FinishedAt = &ts
		}
	}
	return run, nil
}

func stripLikeWildcards(value string) string {
	r := strings.NewReplacer(`%`, ``, `_`, ``)
	return r.Replace(value)
}
