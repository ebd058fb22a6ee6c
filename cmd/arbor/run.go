package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [graph]",
		Short: "Drive a machine interactively",
		Long: `Creates a machine on the graph and reads commands (init, apply, exec, term, state...)
from standard input. Operations listed in --operations run as local commands; the others
are echoed instead of being run against a real instance.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			watch, _ := cmd.Flags().GetBool("watch")
			fail, _ := cmd.Flags().GetStringSlice("fail")
			plain, _ := cmd.Flags().GetBool("plain")

			return cli.Execute(cli.RunOptions{
				GraphPath:  cfg.Graph,
				Format:     cfg.Format,
				Strict:     cfg.Strict,
				Operations: cfg.Operations,
				Watch:      watch,
				Debug:      cfg.LogLevel == "debug",
				Color:      !plain && isTerminal(cmd.OutOrStdout()),
				Fail:       fail,
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolP("watch", "w", false, "Reload the graph when the document changes")
	cmd.Flags().StringSlice("fail", nil, "Operations to report as failed")
	cmd.Flags().Bool("plain", false, "Disable colors and the banner")
	return cmd
}
