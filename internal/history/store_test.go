package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gnssprep/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := history.Run{ID: "0f8e2c1a-run", Command: "run", Source: "/in/bundle.zip", Label: "NOV_22", OutputRoot: "/out"}
	if err := store.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	tasks := []history.Task{
		{RunID: run.ID, Stage: "unpack", Input: "ABC01220.22d", Succeeded: true, Artifacts: []string{"ABC01220.22d"}},
		{RunID: run.ID, Stage: "unpack", Input: "broken.zip", ErrorKind: "archive_corrupt", Error: "zip: not a valid zip file"},
		{RunID: run.ID, Stage: "convert", Input: "ABC01220.22d", Succeeded: true, Artifacts: []string{"ABC01220.22o"}, Elapsed: 1500 * time.Millisecond, Seq: 1},
		{RunID: run.ID, Stage: "split", Input: "ABC01220.22o", Error: "partial split failure", ErrorKind: "partial_split", Seq: 1},
	}
	for _, task := range tasks {
		if err := store.RecordTask(ctx, task); err != nil {
			t.Fatalf("RecordTask: %v", err)
		}
	}
	if err := store.FinishRun(ctx, run.ID, history.StatusCompleted, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.GetRun(ctx, "0f8e")
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if got.Status != history.StatusCompleted || got.FinishedAt == nil || got.Label != "NOV_22" {
		t.Fatalf("unexpected run %+v", got)
	}

	counts, err := store.StageCounts(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []history.StageCount{
		{Stage: "unpack", Succeeded: 1, Failed: 1},
		{Stage: "convert", Succeeded: 1},
		{Stage: "split", Failed: 1},
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("stage counts mismatch (-want +got):\n%s", diff)
	}

	recorded, err := store.Tasks(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recorded) != 4 || recorded[2].Elapsed != 1500*time.Millisecond || recorded[2].Artifacts[0] != "ABC01220.22o" {
		t.Fatalf("unexpected tasks %+v", recorded)
	}
	if recorded[1].Succeeded || recorded[1].ErrorKind != "archive_corrupt" {
		t.Fatalf("unexpected corrupt archive record %+v", recorded[1])
	}

	list, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 run, got %d", len(list))
	}
	if ok, failed := list[0].Totals(); ok != 2 || failed != 2 {
		t.Fatalf("unexpected totals %d/%d", ok, failed)
	}
}

func TestGetRunErrors(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc-1", "abc-2"} {
		if err := store.StartRun(ctx, history.Run{ID: id, Command: "convert"}); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := store.GetRun(ctx, "zzz"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := store.GetRun(ctx, "abc"); !errors.Is(err, history.ErrAmbiguousRun) {
		t.Fatalf("expected ErrAmbiguousRun, got %v", err)
	}
	if run, err := store.GetRun(ctx, "abc-2"); err != nil || run.ID != "abc-2" {
		t.Fatalf("expected exact match, got %v %v", run, err)
	}
	if err := store.FinishRun(ctx, "missing", history.StatusFailed, "boom"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.StartRun(context.Background(), history.Run{ID: "r1", Command: "run"}); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	second, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, err := second.GetRun(context.Background(), "r1"); err != nil {
		t.Fatalf("expected persisted run: %v", err)
	}
	if second.Path() != path {
		t.Fatalf("unexpected path %q", second.Path())
	}
}
