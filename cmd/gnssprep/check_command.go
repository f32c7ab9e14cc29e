package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gnssprep/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var outputRoot string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify tools and directories before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg, outputRoot)

			if ctx.JSONMode() {
				type checkJSON struct {
					Name   string `json:"name"`
					Passed bool   `json:"passed"`
					Detail string `json:"detail,omitempty"`
				}
				payload := make([]checkJSON, 0, len(results))
				for _, r := range results {
					payload = append(payload, checkJSON{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
				}
				if err := writeJSON(cmd, map[string]any{
					"config_path": ctx.configPath,
					"checks":      payload,
				}); err != nil {
					return err
				}
				return preflight.Error(results)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "%sconfig: %s\n", statusIndent, ctx.configPath)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if err := preflight.Error(results); err != nil {
				return err
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputRoot, "output", "o", "", "Output root to check instead of paths.output_root")
	return cmd
}
