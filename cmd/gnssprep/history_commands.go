package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gnssprep/internal/history"
)

var errHistoryDisabled = errors.New("run history is disabled (history.enabled = false)")

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs and their per-file outcomes",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs with success and failure counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				if store == nil {
					return errHistoryDisabled
				}
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}

				if ctx.JSONMode() {
					payload := make([]map[string]any, 0, len(runs))
					for _, r := range runs {
						succeeded, failed := r.Totals()
						entry := runJSON(r.Run)
						entry["succeeded"] = succeeded
						entry["failed"] = failed
						payload = append(payload, entry)
					}
					return writeJSON(cmd, payload)
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					succeeded, failed := r.Totals()
					rows = append(rows, []string{
						shortID(r.ID),
						r.Command,
						r.Label,
						string(r.Status),
						humanize.Time(r.StartedAt),
						strconv.Itoa(succeeded),
						strconv.Itoa(failed),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Run", "Command", "Label", "Status", "Started", "Succeeded", "Failed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "show <run>",
		Short: "Show one run by identifier or unique prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				if store == nil {
					return errHistoryDisabled
				}
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				counts, err := store.StageCounts(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				tasks, err := store.Tasks(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				if ctx.JSONMode() {
					entry := runJSON(*run)
					stages := make([]map[string]any, 0, len(counts))
					for _, c := range counts {
						stages = append(stages, map[string]any{"stage": c.Stage, "succeeded": c.Succeeded, "failed": c.Failed})
					}
					entry["stages"] = stages
					taskPayload := make([]map[string]any, 0, len(tasks))
					for _, t := range tasks {
						taskPayload = append(taskPayload, map[string]any{
							"stage":      t.Stage,
							"input":      t.Input,
							"succeeded":  t.Succeeded,
							"artifacts":  t.Artifacts,
							"error_kind": t.ErrorKind,
							"error":      t.Error,
							"elapsed_ms": t.Elapsed.Milliseconds(),
						})
					}
					entry["tasks"] = taskPayload
					return writeJSON(cmd, entry)
				}

				printRunDetails(cmd.OutOrStdout(), *run, counts, tasks, showAll)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showAll, "all", false, "List successful tasks as well as failures")
	return cmd
}

func printRunDetails(out io.Writer, run history.Run, counts []history.StageCount, tasks []history.Task, showAll bool) {
	fmt.Fprintf(out, "Run:     %s\n", run.ID)
	fmt.Fprintf(out, "Command: %s\n", run.Command)
	fmt.Fprintf(out, "Source:  %s\n", run.Source)
	if run.Label != "" {
		fmt.Fprintf(out, "Label:   %s\n", run.Label)
	}
	fmt.Fprintf(out, "Output:  %s\n", run.OutputRoot)
	fmt.Fprintf(out, "Status:  %s\n", run.Status)
	fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Elapsed: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:   %s\n", run.Error)
	}

	if len(counts) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(counts))
		for _, c := range counts {
			rows = append(rows, []string{c.Stage, strconv.Itoa(c.Succeeded), strconv.Itoa(c.Failed)})
		}
		fmt.Fprint(out, renderTable(
			[]string{"Stage", "Succeeded", "Failed"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight},
		))
	}

	var lines []string
	for _, t := range tasks {
		if t.Succeeded && !showAll {
			continue
		}
		if t.Succeeded {
			lines = append(lines, renderStatusLine(t.Input, statusOK, t.Stage+": "+strings.Join(t.Artifacts, ", "), false))
			continue
		}
		lines = append(lines, renderStatusLine(t.Input, statusError, t.Stage+": "+t.Error, false))
	}
	if len(lines) > 0 {
		fmt.Fprintln(out)
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}
}

func runJSON(run history.Run) map[string]any {
	entry := map[string]any{
		"id":          run.ID,
		"command":     run.Command,
		"source":      run.Source,
		"label":       run.Label,
		"output_root": run.OutputRoot,
		"status":      run.Status,
		"started_at":  run.StartedAt.UTC().Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		entry["finished_at"] = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	if run.Error != "" {
		entry["error"] = run.Error
	}
	return entry
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
