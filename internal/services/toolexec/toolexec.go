// Package toolexec runs external command-line converters.
//
// Clients for individual tools depend on the Executor interface so tests can
// substitute a stub that never spawns a process.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// maxDiagnostic bounds how much stderr is kept for a failure message.
const maxDiagnostic = 4096

// Request describes one invocation.
type Request struct {
	Binary string
	Args   []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Stdout receives standard output; nil discards it.
	Stdout io.Writer
}

// Result carries what the process reported besides its exit status.
type Result struct {
	ExitCode int
	Stderr   string
	Elapsed  time.Duration
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// CommandExecutor runs requests with os/exec.
type CommandExecutor struct{}

// Run starts the process and waits for it. A nonzero exit is returned as an
// error alongside the captured stderr.
func (CommandExecutor) Run(ctx context.Context, req Request) (Result, error) {
	cmd := exec.CommandContext(ctx, req.Binary, req.Args...) //nolint:gosec
	cmd.Dir = req.Dir
	cmd.Stdout = req.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	var stderr boundedBuffer
	stderr.limit = maxDiagnostic
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	result := Result{Stderr: strings.TrimSpace(stderr.String()), Elapsed: time.Since(start)}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		return result, err
	}
	return result, nil
}

// Diagnostic joins an error and the stderr text into a one-line summary.
func Diagnostic(result Result, err error) string {
	parts := make([]string, 0, 2)
	if err != nil {
		parts = append(parts, err.Error())
	}
	if text := firstLines(result.Stderr, 3); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, ": ")
}

func firstLines(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " | ")
}

type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string { return b.buf.String() }
