// Package taskpool runs independent per-file tasks on a bounded set of
// goroutines.
//
// A task failure never cancels its siblings: every submitted task runs to
// completion and Run returns only after the last one finishes, which gives
// callers a barrier between pipeline stages. Outcomes are delivered in the
// order tasks finish.
package taskpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gnssprep/internal/services"
)

// Task binds one input file to the work performed on it.
type Task struct {
	Input string
	// ID correlates the task's log lines. A random one is assigned when empty.
	ID  string
	Run func(ctx context.Context) ([]string, error)
}

// Outcome records how a task ended.
type Outcome struct {
	Input string
	// Artifacts names the files the task produced on success.
	Artifacts []string
	Err       error
	Elapsed   time.Duration
	// Seq is the 1-based completion position within one Run call.
	Seq int
	// RequestID is the correlation identifier the task ran under.
	RequestID string
}

// Succeeded reports whether the task finished without error.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Pool bounds how many tasks execute at once. A Pool may be reused for
// successive stages.
type Pool struct {
	workers int
}

// New returns a pool running at most workers tasks concurrently. A
// non-positive count uses the number of CPUs.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers reports the concurrency limit.
func (p *Pool) Workers() int { return p.workers }

// Run executes tasks and blocks until all have finished. onDone, when
// non-nil, is called once per task in completion order; calls are serialized.
// The returned slice holds the same outcomes in the same order.
func (p *Pool) Run(ctx context.Context, tasks []Task, onDone func(Outcome)) []Outcome {
	if len(tasks) == 0 {
		return nil
	}
	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(tasks))
	)
	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, task := range tasks {
		g.Go(func() error {
			outcome := execute(ctx, task)
			mu.Lock()
			defer mu.Unlock()
			outcome.Seq = len(outcomes) + 1
			outcomes = append(outcomes, outcome)
			if onDone != nil {
				onDone(outcome)
			}
			return nil
		})
	}
	_ = g.Wait() // errors captured in Outcome.Err
	return outcomes
}

func execute(ctx context.Context, task Task) (outcome Outcome) {
	start := time.Now()
	outcome.Input = task.Input
	outcome.RequestID = task.ID
	if outcome.RequestID == "" {
		outcome.RequestID = uuid.NewString()
	}
	ctx = services.WithRequestID(ctx, outcome.RequestID)
	defer func() {
		if r := recover(); r != nil {
			outcome.Artifacts = nil
			outcome.Err = fmt.Errorf("task panicked: %v", r)
		}
		outcome.Elapsed = time.Since(start)
	}()
	if task.Run == nil {
		outcome.Err = fmt.Errorf("task %q has no work", task.Input)
		return outcome
	}
	artifacts, err := task.Run(ctx)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Artifacts = artifacts
	return outcome
}

// Summary counts outcomes.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize tallies a set of outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
