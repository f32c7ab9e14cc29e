package main

import (
	"github.com/spf13/cobra"

	"gnssprep/internal/config"
	"gnssprep/internal/deps"
	"gnssprep/internal/preflight"
	"gnssprep/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "run <source> [output-root] <label>",
		Short: "Unpack, decompress and split a survey bundle",
		Long: `Run all three stages for one survey bundle.

<source> is a zip archive of per-station archives, or a directory holding such
archives. Results are written to <output-root>/<LABEL>; when output-root is
omitted the configured paths.output_root is used.

Individual file failures are reported but do not fail the run unless --strict
is set.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, label := args[0], args[len(args)-1]
			outputRoot := cfg.Paths.OutputRoot
			if len(args) == 3 {
				outputRoot = args[1]
			}
			if err := preflight.Error(preflight.RunAll(cfg, outputRoot)); err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(p *workflow.Pipeline) error {
				summary, runErr := p.Run(cmd.Context(), source, outputRoot, label)
				return reportRun(cmd, ctx.JSONMode(), summary, runErr, strict)
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any file fails")
	return cmd
}

func newUnpackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <source> <dest>",
		Short: "Extract raw observation files from a survey bundle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p *workflow.Pipeline) error {
				summary, runErr := p.Unpack(cmd.Context(), args[0], args[1])
				return reportRun(cmd, ctx.JSONMode(), summary, runErr, false)
			})
		},
	}
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "convert <dir>",
		Short: "Decompress every raw observation file in a directory with CRX2RNX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := requireTools(cfg, "CRX2RNX"); err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(p *workflow.Pipeline) error {
				summary, runErr := p.Convert(cmd.Context(), args[0])
				return reportRun(cmd, ctx.JSONMode(), summary, runErr, strict)
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any file fails")
	return cmd
}

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "split <dir> <output-root>",
		Short: "Split decompressed observation files into constellation views with teqc",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := requireTools(cfg, "teqc"); err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(p *workflow.Pipeline) error {
				summary, runErr := p.Split(cmd.Context(), args[0], args[1])
				return reportRun(cmd, ctx.JSONMode(), summary, runErr, strict)
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any file fails")
	return cmd
}

// requireTools fails when any of the named tools cannot be resolved.
func requireTools(cfg *config.Config, names ...string) error {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var reqs []deps.Requirement
	for _, req := range deps.Requirements(cfg) {
		if wanted[req.Name] {
			reqs = append(reqs, req)
		}
	}
	missing := deps.Missing(deps.CheckBinaries(reqs))
	results := make([]preflight.Result, 0, len(missing))
	for _, status := range missing {
		results = append(results, preflight.FromDependency(status))
	}
	return preflight.Error(results)
}
