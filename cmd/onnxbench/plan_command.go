package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"onnxbench/internal/steps"
)

type planStepView struct {
	Name         string   `json:"name"`
	Announcement string   `json:"announcement"`
	Argv         []string `json:"argv"`
	Inputs       []string `json:"inputs,omitempty"`
	Outputs      []string `json:"outputs,omitempty"`
}

type planView struct {
	WorkDir     string         `json:"workdir"`
	Directories []string       `json:"directories"`
	Steps       []planStepView `json:"steps"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var asDOT bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the steps a run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asDOT {
				return errors.New("--json and --dot are mutually exclusive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			plan := steps.Build(cfg)
			if err := plan.ValidateStrict(); err != nil {
				return err
			}

			switch {
			case asDOT:
				return plan.WriteDOT(cmd.OutOrStdout())
			case asJSON:
				return renderJSON(cmd.OutOrStdout(), buildPlanView(plan))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Work directory: %s\n", plan.WorkDir)
			fmt.Fprintf(out, "Creates:        %s\n\n", strings.Join(plan.Directories, ", "))

			rows := make([][]string, 0, len(plan.Steps))
			for idx, step := range plan.Steps {
				rows = append(rows, []string{
					strconv.Itoa(idx + 1),
					stepLabel(step.Name),
					step.CommandLine(),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Step", "Command"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the plan as JSON")
	cmd.Flags().BoolVar(&asDOT, "dot", false, "Emit the artifact graph in Graphviz DOT format")
	return cmd
}

func buildPlanView(plan *steps.Plan) planView {
	view := planView{
		WorkDir:     plan.WorkDir,
		Directories: append([]string(nil), plan.Directories...),
		Steps:       make([]planStepView, 0, len(plan.Steps)),
	}
	for _, step := range plan.Steps {
		view.Steps = append(view.Steps, planStepView{
			Name:         step.Name,
			Announcement: step.Announcement,
			Argv:         step.Argv(),
			Inputs:       step.Inputs,
			Outputs:      step.Outputs,
		})
	}
	return view
}
