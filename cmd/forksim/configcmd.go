package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/forksim/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or check control core configuration files",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init <path>",
			Short: "Write the resolved configuration to a file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := a.loadConfig(cmd)
				if err != nil {
					return err
				}
				if err := cfg.SaveConfig(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "check <path>",
			Short: "Load and validate a configuration file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadConfig(args[0])
				if err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d cores, cycle time %.3g ns)\n",
					args[0], cfg.NumCores, cfg.CycleTime()*1e9)
				return nil
			},
		},
	)

	return cmd
}
