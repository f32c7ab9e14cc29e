// Package crx2rnx wraps the CRX2RNX Hatanaka decompressor.
//
// CRX2RNX reads a compact RINEX observation file and writes the plain RINEX
// sibling next to it. The client runs it with the file's directory as the
// working directory and treats a nonzero exit, any stderr output, or a
// missing output file as failure.
package crx2rnx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gnssprep/internal/obsfile"
	"gnssprep/internal/services"
	"gnssprep/internal/services/toolexec"
)

const stageName = "convert"

// Converter defines the behaviour required by the conversion coordinator.
type Converter interface {
	Convert(ctx context.Context, rawPath string) (string, error)
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

// WithForceOverwrite controls the -f flag that lets CRX2RNX replace an
// existing output file instead of prompting for confirmation. Enabled by default.
func WithForceOverwrite(force bool) Option {
	return func(c *Client) { c.force = force }
}

// Client wraps CRX2RNX CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	force   bool
	exec    toolexec.Executor
}

// New constructs a CRX2RNX client. A zero timeout waits indefinitely.
func New(binary string, timeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "crx2rnx", "decompressor binary required", nil)
	}
	client := &Client{
		binary:  binary,
		timeout: timeout,
		force:   true,
		exec:    toolexec.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Convert decompresses rawPath and returns the name of the produced file.
func (c *Client) Convert(ctx context.Context, rawPath string) (string, error) {
	name := filepath.Base(rawPath)
	outName, err := obsfile.DecompressedName(name)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "crx2rnx", name, err)
	}
	if abs, err := filepath.Abs(rawPath); err == nil {
		rawPath = abs
	}
	dir := filepath.Dir(rawPath)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := make([]string, 0, 2)
	if c.force {
		args = append(args, "-f")
	}
	args = append(args, rawPath)

	result, runErr := c.exec.Run(runCtx, toolexec.Request{Binary: c.binary, Args: args, Dir: dir})
	if runErr != nil {
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, stageName, "crx2rnx", name+": exceeded "+c.timeout.String(), runErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", services.Wrap(services.ErrExternalTool, stageName, "crx2rnx", name+": interrupted", ctxErr)
		}
		return "", services.Wrap(services.ErrExternalTool, stageName, "crx2rnx", name+": "+toolexec.Diagnostic(result, runErr), nil)
	}
	if result.Stderr != "" {
		return "", services.Wrap(services.ErrExternalTool, stageName, "crx2rnx", name+": "+toolexec.Diagnostic(result, nil), nil)
	}

	info, err := os.Stat(filepath.Join(dir, outName))
	if err != nil || !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrExternalTool, stageName, "crx2rnx", name+": no output file "+outName+" produced", nil)
	}
	return outName, nil
}
