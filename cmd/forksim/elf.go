package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/forksim/loader"
	"github.com/sarchlab/forksim/trace"
)

func newELFCmd(a *app) *cobra.Command {
	var (
		blockSize int
		events    bool
	)

	cmd := &cobra.Command{
		Use:   "elf <program.elf>",
		Short: "Fetch every block of a RISC-V program through the control core",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			prog, err := loader.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load program: %w", err)
			}

			s := trace.FromProgram(args[0], prog, blockSize)
			a.logger.WithField("blocks", len(s.Steps)-1).Info("program loaded")

			runner, err := trace.NewRunner(cfg, trace.WithLogger(a.logger))
			if err != nil {
				return err
			}

			res, err := runner.Run(cmd.Context(), s)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Program: %s (entry %#x)\n", args[0], prog.EntryPoint)
			printStats(w, res.Stats, res.SimTime)
			if events {
				fmt.Fprintln(w, "  Events:")
				for _, e := range res.Events {
					fmt.Fprintf(w, "    %s\n", e)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&blockSize, "block-size", loader.DefaultBlockSize, "maximum instructions per fetched block")
	cmd.Flags().BoolVar(&events, "events", false, "print the event log")

	return cmd
}
