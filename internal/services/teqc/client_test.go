package teqc_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"gnssprep/internal/services"
	"gnssprep/internal/services/teqc"
	"gnssprep/internal/services/toolexec"
)

type stubExecutor struct {
	stdout   string
	stderr   string
	err      error
	block    bool
	requests []toolexec.Request
}

func (s *stubExecutor) Run(ctx context.Context, req toolexec.Request) (toolexec.Result, error) {
	s.requests = append(s.requests, req)
	if s.block {
		<-ctx.Done()
		return toolexec.Result{}, ctx.Err()
	}
	if req.Stdout != nil {
		_, _ = io.WriteString(req.Stdout, s.stdout)
	}
	return toolexec.Result{Stderr: s.stderr}, s.err
}

func TestFilterStreamsStdout(t *testing.T) {
	exec := &stubExecutor{stdout: "RINEX GPS", stderr: "! Notice ! ignoring unknown SV"}
	client, err := teqc.New("teqc", 0, teqc.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var out bytes.Buffer

	if err := client.Filter(context.Background(), "/data/ABC01220.22o", []string{"-R", "-E"}, &out); err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if out.String() != "RINEX GPS" {
		t.Fatalf("unexpected output %q", out.String())
	}
	got := strings.Join(exec.requests[0].Args, " ")
	if got != "-R -E /data/ABC01220.22o" {
		t.Fatalf("unexpected args %q", got)
	}
	if exec.requests[0].Dir != "/data" {
		t.Fatalf("unexpected dir %q", exec.requests[0].Dir)
	}
}

func TestFilterReportsExitFailure(t *testing.T) {
	exec := &stubExecutor{err: errors.New("exit status 1"), stderr: "teqc: failure reading header"}
	client, _ := teqc.New("teqc", 0, teqc.WithExecutor(exec))

	err := client.Filter(context.Background(), "/data/ABC01220.22o", []string{"-G", "-E"}, io.Discard)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	for _, want := range []string{"ABC01220.22o", "-G -E", "failure reading header"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestFilterTimeout(t *testing.T) {
	client, _ := teqc.New("teqc", 5*time.Millisecond, teqc.WithExecutor(&stubExecutor{block: true}))
	err := client.Filter(context.Background(), "/data/x.22o", nil, io.Discard)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestFilterInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client, _ := teqc.New("teqc", 0, teqc.WithExecutor(&stubExecutor{block: true}))
	err := client.Filter(ctx, "/data/x.22o", nil, io.Discard)
	if !errors.Is(err, context.Canceled) || errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
