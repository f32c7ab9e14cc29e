package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gnssprep/internal/taskpool"
	"gnssprep/internal/workflow"
)

const maxDiagnosticWidth = 120

// consoleObserver prints one line per finished task as outcomes arrive.
type consoleObserver struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
}

func newConsoleObserver(out io.Writer, colorize bool) *consoleObserver {
	return &consoleObserver{out: out, colorize: colorize}
}

func (o *consoleObserver) StageStarted(stage, dir string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.out)
	for _, line := range renderSectionHeader(stageTitle(stage), o.colorize) {
		fmt.Fprintln(o.out, line)
	}
	fmt.Fprintf(o.out, "%sreading %s\n", statusIndent, dir)
}

func (o *consoleObserver) TaskFinished(stage string, outcome taskpool.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kind, message := describeOutcome(stage, outcome)
	fmt.Fprintln(o.out, renderStatusLine(outcome.Input, kind, message, o.colorize))
}

func (o *consoleObserver) StageFinished(report workflow.StageReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if report.NothingToDo() {
		fmt.Fprintln(o.out, renderStatusLine("result", statusWarn, "nothing to do", o.colorize))
		return
	}
	c := report.Counts()
	kind := statusOK
	if c.Failed > 0 {
		kind = statusWarn
	}
	message := fmt.Sprintf("%d succeeded, %d failed in %s", c.Succeeded, c.Failed, report.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(o.out, renderStatusLine("result", kind, message, o.colorize))
}

func describeOutcome(stage string, outcome taskpool.Outcome) (statusKind, string) {
	if !outcome.Succeeded() {
		kind := statusError
		if stage == workflow.StageUnpack {
			kind = statusWarn
		}
		return kind, shortDiagnostic(outcome.Err)
	}
	switch stage {
	case workflow.StageUnpack:
		return statusOK, "extracted"
	case workflow.StageSplit:
		views := make([]string, 0, len(outcome.Artifacts))
		for _, artifact := range outcome.Artifacts {
			views = append(views, filepath.Dir(artifact))
		}
		return statusOK, strings.Join(views, ", ")
	default:
		return statusOK, "-> " + strings.Join(outcome.Artifacts, ", ")
	}
}

func shortDiagnostic(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if len(msg) > maxDiagnosticWidth {
		msg = msg[:maxDiagnosticWidth-3] + "..."
	}
	return msg
}

func stageTitle(stage string) string {
	switch stage {
	case workflow.StageUnpack:
		return "Unpack"
	case workflow.StageConvert:
		return "Convert"
	case workflow.StageSplit:
		return "Split"
	default:
		return stage
	}
}
