package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"onnxbench/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					if runs == nil {
						runs = []history.Run{}
					}
					return renderJSON(cmd.OutOrStdout(), runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Duration", "Result", "Exit", "CPU"},
					historyRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit runs as JSON")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its steps (an unambiguous ID prefix is accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return renderJSON(cmd.OutOrStdout(), run)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:       %s\n", run.ID)
				fmt.Fprintf(out, "Started:   %s\n", formatTimestamp(run.StartedAt))
				fmt.Fprintf(out, "Duration:  %s\n", formatDuration(run.Duration()))
				fmt.Fprintf(out, "Result:    %s\n", runResult(run))
				if run.WorkDir != "" {
					fmt.Fprintf(out, "Workdir:   %s\n", run.WorkDir)
				}
				if run.Hostname != "" {
					fmt.Fprintf(out, "Host:      %s\n", run.Hostname)
				}
				fmt.Fprintf(out, "CPU:       %s\n\n", cpuSummary(run))

				rows := make([][]string, 0, len(run.Steps))
				for _, step := range run.Steps {
					rows = append(rows, []string{
						strconv.Itoa(step.Position),
						stepLabel(step.Step),
						string(step.Status),
						strconv.Itoa(step.ExitCode),
						formatDuration(step.Duration),
						step.Command,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Step", "Status", "Exit", "Duration", "Command"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the run as JSON")
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			formatTimestamp(run.StartedAt),
			formatDuration(run.Duration()),
			runResult(&run),
			strconv.Itoa(run.ExitCode),
			cpuSummary(&run),
		})
	}
	return rows
}

func runResult(run *history.Run) string {
	if run.Succeeded() {
		return "succeeded"
	}
	if run.FailedStep != "" {
		return "failed at " + stepLabel(run.FailedStep)
	}
	return "failed"
}

func cpuSummary(run *history.Run) string {
	brand := strings.TrimSpace(run.CPUBrand)
	if brand == "" {
		brand = "unknown"
	}
	if len(run.CPUFeatures) == 0 {
		return brand
	}
	return fmt.Sprintf("%s [%s]", brand, strings.Join(run.CPUFeatures, " "))
}

