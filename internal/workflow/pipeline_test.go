package workflow_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gnssprep/internal/config"
	"gnssprep/internal/history"
	"gnssprep/internal/services"
	"gnssprep/internal/taskpool"
	"gnssprep/internal/testsupport"
	"gnssprep/internal/workflow"
)

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []workflow.StageReport
	tasks    map[string][]string
}

func (o *recordingObserver) StageStarted(stage, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, stage)
}

func (o *recordingObserver) TaskFinished(stage string, outcome taskpool.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tasks == nil {
		o.tasks = make(map[string][]string)
	}
	o.tasks[stage] = append(o.tasks[stage], outcome.Input)
}

func (o *recordingObserver) StageFinished(report workflow.StageReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, report)
}

func stageReport(summary *workflow.Summary, name string) (workflow.StageReport, bool) {
	for _, stage := range summary.Stages {
		if stage.Stage == name {
			return stage, true
		}
	}
	return workflow.StageReport{}, false
}

func TestRunEndToEndWithStubTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenHistory(t, cfg)
	source := testsupport.SurveyBundle(t, testsupport.BaseDir(cfg))
	observer := &recordingObserver{}

	pipeline, err := workflow.New(cfg, workflow.WithRecorder(store), workflow.WithObserver(observer))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	summary, err := pipeline.Run(context.Background(), source, cfg.Paths.OutputRoot, "nov_22")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	layout := summary.Layout
	if layout == nil || layout.Label != "NOV_22" {
		t.Fatalf("unexpected layout %+v", layout)
	}
	if diff := cmp.Diff([]string{"ABC01220.22d", "ABC01220.22o"}, testsupport.ListNames(t, layout.RawDir)); diff != "" {
		t.Fatalf("raw dir mismatch (-want +got):\n%s", diff)
	}
	for _, view := range config.DefaultViews() {
		want := []string{view.Name + "_ABC01220.22o"}
		if diff := cmp.Diff(want, testsupport.ListNames(t, filepath.Join(layout.SplitDir, view.Name))); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", view.Name, diff)
		}
	}
	data, err := os.ReadFile(filepath.Join(layout.SplitDir, config.ViewPrimary, "PRIMARY_ABC01220.22o"))
	if err != nil || !strings.HasPrefix(string(data), "filtered -R -E ") {
		t.Fatalf("unexpected PRIMARY output %q (%v)", data, err)
	}

	unpacked, _ := stageReport(summary, workflow.StageUnpack)
	if c := unpacked.Counts(); c.Succeeded != 1 || c.Failed != 1 {
		t.Fatalf("expected one moved file and one corrupt archive, got %+v", c)
	}
	for _, o := range unpacked.Outcomes {
		if !o.Succeeded() && !errors.Is(o.Err, services.ErrArchiveCorrupt) {
			t.Fatalf("expected corrupt archive outcome, got %v", o.Err)
		}
	}
	if diff := cmp.Diff([]string{"unpack", "convert", "split"}, observer.started); diff != "" {
		t.Fatalf("stage order mismatch (-want +got):\n%s", diff)
	}
	if leftover := testsupport.ListNames(t, cfg.Paths.StagingDir); len(leftover) != 0 {
		t.Fatalf("staging should be empty, found %v", leftover)
	}

	run, err := store.GetRun(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != history.StatusCompleted || run.Label != "NOV_22" {
		t.Fatalf("unexpected history run %+v", run)
	}
	counts, err := store.StageCounts(context.Background(), summary.RunID)
	if err != nil {
		t.Fatal(err)
	}
	want := []history.StageCount{
		{Stage: "unpack", Succeeded: 1, Failed: 1},
		{Stage: "convert", Succeeded: 1},
		{Stage: "split", Succeeded: 1},
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("history counts mismatch (-want +got):\n%s", diff)
	}
}

func TestRunContinuesPastFailedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	station := testsupport.ZipBytes(t, map[string][]byte{
		"GOOD0010.23d": []byte("fine\n"),
		"BAD10010.23d": []byte("CORRUPT\n"),
		"SPLT0010.23d": []byte("BADSPLIT\n"),
	})
	source := testsupport.WriteFile(t, filepath.Join(base, "in", "bundle.zip"), testsupport.ZipBytes(t, map[string][]byte{"station.zip": station}))

	pipeline, err := workflow.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := pipeline.Run(context.Background(), source, cfg.Paths.OutputRoot, "jan_23")
	if err != nil {
		t.Fatalf("per-file failures must not fail the run: %v", err)
	}

	converted, _ := stageReport(summary, workflow.StageConvert)
	if c := converted.Counts(); c.Succeeded != 2 || c.Failed != 1 {
		t.Fatalf("unexpected convert counts %+v", c)
	}
	split, _ := stageReport(summary, workflow.StageSplit)
	if c := split.Counts(); c.Succeeded != 1 || c.Failed != 1 {
		t.Fatalf("unexpected split counts %+v", c)
	}
	for _, o := range split.Outcomes {
		if o.Input == "SPLT0010.23o" && (errors.Is(o.Err, services.ErrPartialSplit) || services.Kind(o.Err) != "external_tool") {
			t.Fatalf("expected external tool failure on the first view, got %v", o.Err)
		}
	}
	if totals := summary.Totals(); totals.Failed != 2 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if got := testsupport.ListNames(t, filepath.Join(summary.Layout.SplitDir, config.ViewPrimary)); len(got) != 1 {
		t.Fatalf("expected only the good file in PRIMARY, got %v", got)
	}
}

func TestRunNothingToDoIsNotAnError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	station := testsupport.ZipBytes(t, map[string][]byte{"readme.txt": []byte("no data")})
	source := testsupport.WriteFile(t, filepath.Join(base, "empty.zip"), testsupport.ZipBytes(t, map[string][]byte{"s.zip": station}))

	pipeline, err := workflow.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := pipeline.Run(context.Background(), source, cfg.Paths.OutputRoot, "feb_23")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Stages) != 3 {
		t.Fatalf("expected all three stages to run, got %d", len(summary.Stages))
	}
	for _, stage := range summary.Stages {
		if !stage.NothingToDo() {
			t.Fatalf("expected %s to have nothing to do", stage.Stage)
		}
	}
}

func TestRunInvalidSourceIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenHistory(t, cfg)
	logs, logger := testsupport.NewLogCapture()
	pipeline, err := workflow.New(cfg, workflow.WithRecorder(store), workflow.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}

	summary, err := pipeline.Run(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), cfg.Paths.OutputRoot, "x")
	if !errors.Is(err, services.ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
	if len(summary.Stages) != 1 {
		t.Fatalf("expected to stop after unpack, got %d stages", len(summary.Stages))
	}
	run, err := store.GetRun(context.Background(), summary.RunID)
	if err != nil || run.Status != history.StatusFailed {
		t.Fatalf("expected failed run in history, got %+v %v", run, err)
	}
	aborted := logs.Events(t, "run_aborted")
	if len(aborted) != 1 || aborted[0]["error_kind"] != "invalid_source" || aborted[0]["level"] != "ERROR" {
		t.Fatalf("expected one run_aborted error record, got %v", aborted)
	}
}

type blockingConverter struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingConverter) Convert(ctx context.Context, _ string) (string, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return "", ctx.Err()
}

type nopFilter struct{}

func (nopFilter) Filter(context.Context, string, []string, io.Writer) error { return nil }

func TestRunRejectsConcurrentRunOnSameLabel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	source := testsupport.SurveyBundle(t, base)
	conv := &blockingConverter{started: make(chan struct{})}

	first, err := workflow.New(cfg, workflow.WithConverter(conv), workflow.WithFilterer(nopFilter{}))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var summary *workflow.Summary
	go func() {
		var runErr error
		summary, runErr = first.Run(ctx, source, cfg.Paths.OutputRoot, "mar_23")
		done <- runErr
	}()
	<-conv.started

	second, err := workflow.New(cfg, workflow.WithConverter(conv), workflow.WithFilterer(nopFilter{}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := second.Run(context.Background(), source, cfg.Paths.OutputRoot, "MAR_23"); !errors.Is(err, workflow.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !summary.Interrupted {
		t.Fatal("expected interrupted summary")
	}
	if _, ok := stageReport(summary, workflow.StageSplit); ok {
		t.Fatal("split must not start after interruption")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Split.Views = nil
	if _, err := workflow.New(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := workflow.New(nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for nil config, got %v", err)
	}
}

func TestNewLayout(t *testing.T) {
	root := t.TempDir()
	layout, err := workflow.NewLayout(root, " nov_22 ")
	if err != nil {
		t.Fatal(err)
	}
	if layout.RawDir != filepath.Join(root, "NOV_22", workflow.RawDirName) {
		t.Fatalf("unexpected raw dir %q", layout.RawDir)
	}
	if layout.SplitDir != filepath.Join(root, "NOV_22", workflow.SplitDirName) {
		t.Fatalf("unexpected split dir %q", layout.SplitDir)
	}
	if _, err := workflow.NewLayout(root, "  "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty label, got %v", err)
	}
}
