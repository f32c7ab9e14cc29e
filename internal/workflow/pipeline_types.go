package workflow

import (
	"context"
	"time"

	"gnssprep/internal/history"
	"gnssprep/internal/taskpool"
)

// Stage names as they appear in logs, summaries and the run history.
const (
	StageUnpack  = "unpack"
	StageConvert = "convert"
	StageSplit   = "split"
)

// StageReport collects the outcomes of one stage.
type StageReport struct {
	Stage string
	// Dir is the directory the stage read its inputs from.
	Dir      string
	Outcomes []taskpool.Outcome
	Elapsed  time.Duration
}

// NothingToDo reports whether the stage found no eligible files.
func (r StageReport) NothingToDo() bool { return len(r.Outcomes) == 0 }

// Counts tallies the stage outcomes.
func (r StageReport) Counts() taskpool.Summary { return taskpool.Summarize(r.Outcomes) }

// Summary describes a finished command.
type Summary struct {
	RunID      string
	Command    string
	OutputRoot string
	Layout     *Layout
	Stages     []StageReport
	StartedAt  time.Time
	FinishedAt time.Time
	// Interrupted is set when the context was cancelled before the last stage finished.
	Interrupted bool
}

// Totals sums outcomes across stages.
func (s Summary) Totals() taskpool.Summary {
	var total taskpool.Summary
	for _, stage := range s.Stages {
		c := stage.Counts()
		total.Total += c.Total
		total.Succeeded += c.Succeeded
		total.Failed += c.Failed
	}
	return total
}

// Observer receives progress as a command runs. Calls for one stage are
// serialized.
type Observer interface {
	StageStarted(stage, dir string)
	TaskFinished(stage string, outcome taskpool.Outcome)
	StageFinished(report StageReport)
}

// Recorder persists run and task outcomes. *history.Store satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, run history.Run) error
	RecordTask(ctx context.Context, task history.Task) error
	FinishRun(ctx context.Context, id string, status history.RunStatus, message string) error
}

type nopObserver struct{}

func (nopObserver) StageStarted(string, string) {}
func (nopObserver) TaskFinished(string, taskpool.Outcome) {}
func (nopObserver) StageFinished(StageReport) {}
