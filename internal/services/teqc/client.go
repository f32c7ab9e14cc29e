// Package teqc wraps the teqc RINEX toolkit used to filter observation files
// down to a constellation subset.
package teqc

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gnssprep/internal/services"
	"gnssprep/internal/services/toolexec"
)

const stageName = "split"

// Filterer defines the behaviour required by the split coordinator.
type Filterer interface {
	Filter(ctx context.Context, input string, flags []string, out io.Writer) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec toolexec.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps teqc CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    toolexec.Executor
}

// New constructs a teqc client. A zero timeout waits indefinitely.
func New(binary string, timeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "teqc", "constellation filter binary required", nil)
	}
	client := &Client{
		binary:  binary,
		timeout: timeout,
		exec:    toolexec.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Filter runs teqc with flags against input and streams the filtered
// observation file to out. teqc reports recoverable problems on stderr, so
// only the exit status decides success.
func (c *Client) Filter(ctx context.Context, input string, flags []string, out io.Writer) error {
	name := filepath.Base(input)
	if abs, err := filepath.Abs(input); err == nil {
		input = abs
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := make([]string, 0, len(flags)+1)
	args = append(args, flags...)
	args = append(args, input)

	result, err := c.exec.Run(runCtx, toolexec.Request{Binary: c.binary, Args: args, Dir: filepath.Dir(input), Stdout: out})
	if err == nil {
		return nil
	}
	detail := name + " " + strings.Join(flags, " ")
	if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, "teqc", detail+": exceeded "+c.timeout.String(), err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "teqc", detail+": interrupted", ctxErr)
	}
	return services.Wrap(services.ErrExternalTool, stageName, "teqc", detail+": "+toolexec.Diagnostic(result, err), nil)
}
