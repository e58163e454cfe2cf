package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/forksim/trace"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		parallel int
		events   bool
	)

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenario files and check their expectations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios := make([]*trace.Scenario, 0, len(args))
			for _, path := range args {
				s, err := trace.LoadScenario(path)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, s)
			}
			return a.runScenarios(cmd, scenarios, parallel, events)
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "scenarios run concurrently")
	cmd.Flags().BoolVar(&events, "events", false, "print the event log of each scenario")

	return cmd
}

func newBuiltinCmd(a *app) *cobra.Command {
	var events bool

	cmd := &cobra.Command{
		Use:   "builtin",
		Short: "Run the built-in reference scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runScenarios(cmd, trace.Builtin(), 1, events)
		},
	}

	cmd.Flags().BoolVar(&events, "events", false, "print the event log of each scenario")

	return cmd
}

func (a *app) runScenarios(
	cmd *cobra.Command,
	scenarios []*trace.Scenario,
	parallel int,
	events bool,
) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	runner, err := trace.NewRunner(cfg, trace.WithLogger(a.logger))
	if err != nil {
		return err
	}

	results, err := runner.RunAll(cmd.Context(), scenarios, parallel)
	if err != nil {
		return err
	}

	if failed := printResults(cmd.OutOrStdout(), results, events); failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}
