package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gnssprep/internal/services"
	"gnssprep/internal/taskpool"
	"gnssprep/internal/workflow"
)

type taskReport struct {
	Input     string   `json:"input"`
	Succeeded bool     `json:"succeeded"`
	Artifacts []string `json:"artifacts,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Error     string   `json:"error,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms"`
}

type stageReport struct {
	Stage     string       `json:"stage"`
	Dir       string       `json:"dir"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	ElapsedMS int64        `json:"elapsed_ms"`
	Tasks     []taskReport `json:"tasks"`
}

type runReport struct {
	RunID       string        `json:"run_id"`
	Command     string        `json:"command"`
	OutputRoot  string        `json:"output_root"`
	Label       string        `json:"label,omitempty"`
	RawDir      string        `json:"raw_dir,omitempty"`
	SplitDir    string        `json:"split_dir,omitempty"`
	Interrupted bool          `json:"interrupted"`
	Error       string        `json:"error,omitempty"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Stages      []stageReport `json:"stages"`
}

func buildRunReport(summary *workflow.Summary, runErr error) runReport {
	report := runReport{
		RunID:       summary.RunID,
		Command:     summary.Command,
		OutputRoot:  summary.OutputRoot,
		Interrupted: summary.Interrupted,
		Stages:      make([]stageReport, 0, len(summary.Stages)),
	}
	if summary.Layout != nil {
		report.Label = summary.Layout.Label
		report.RawDir = summary.Layout.RawDir
		report.SplitDir = summary.Layout.SplitDir
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	totals := summary.Totals()
	report.Total, report.Succeeded, report.Failed = totals.Total, totals.Succeeded, totals.Failed

	for _, stage := range summary.Stages {
		c := stage.Counts()
		sr := stageReport{
			Stage:     stage.Stage,
			Dir:       stage.Dir,
			Total:     c.Total,
			Succeeded: c.Succeeded,
			Failed:    c.Failed,
			ElapsedMS: stage.Elapsed.Milliseconds(),
			Tasks:     make([]taskReport, 0, len(stage.Outcomes)),
		}
		for _, o := range stage.Outcomes {
			sr.Tasks = append(sr.Tasks, newTaskReport(o))
		}
		report.Stages = append(report.Stages, sr)
	}
	return report
}

func newTaskReport(o taskpool.Outcome) taskReport {
	tr := taskReport{
		Input:     o.Input,
		Succeeded: o.Succeeded(),
		Artifacts: o.Artifacts,
		ElapsedMS: o.Elapsed.Milliseconds(),
	}
	if o.Err != nil {
		tr.ErrorKind = services.Kind(o.Err)
		tr.Error = o.Err.Error()
	}
	return tr
}

func printRunSummary(out io.Writer, summary *workflow.Summary) {
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(summary.Stages)+1)
	for _, stage := range summary.Stages {
		c := stage.Counts()
		rows = append(rows, []string{
			stage.Stage,
			strconv.Itoa(c.Total),
			strconv.Itoa(c.Succeeded),
			strconv.Itoa(c.Failed),
			stage.Elapsed.Round(time.Millisecond).String(),
		})
	}
	totals := summary.Totals()
	rows = append(rows, []string{
		"total",
		strconv.Itoa(totals.Total),
		strconv.Itoa(totals.Succeeded),
		strconv.Itoa(totals.Failed),
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String(),
	})
	fmt.Fprint(out, renderTable(
		[]string{"Stage", "Files", "Succeeded", "Failed", "Elapsed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))

	if summary.Layout != nil {
		fmt.Fprintf(out, "Raw files:   %s\n", summary.Layout.RawDir)
		fmt.Fprintf(out, "Split files: %s\n", summary.Layout.SplitDir)
	} else {
		fmt.Fprintf(out, "Output: %s\n", summary.OutputRoot)
	}
	fmt.Fprintf(out, "Run ID: %s\n", summary.RunID)
	if summary.Interrupted {
		fmt.Fprintln(out, "Run was interrupted before all stages finished")
	}
}

// reportRun prints the summary of a finished pipeline command and folds
// per-file failures into an error when strict is set.
func reportRun(cmd *cobra.Command, jsonMode bool, summary *workflow.Summary, runErr error, strict bool) error {
	if summary == nil {
		return runErr
	}
	if jsonMode {
		if err := writeJSON(cmd, buildRunReport(summary, runErr)); err != nil {
			return err
		}
	} else {
		printRunSummary(cmd.OutOrStdout(), summary)
	}
	if runErr != nil {
		return runErr
	}
	if failed := summary.Totals().Failed; strict && failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}
