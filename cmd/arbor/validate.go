package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [graph]",
		Short: "Check the graph for unresolved references",
		Long:  `Crawls every state reachable from the root once and reports transition targets and trigger actions that do not resolve.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			// Issues are reported below, never refused at load time
			cfg.Strict = false
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}

			issues := engine.Validate()
			report := tui.IssuesMarkdown(cfg.Graph, issues)
			if isTerminal(cmd.OutOrStdout()) {
				if rendered, err := tui.NewRenderer()(report); err == nil {
					report = rendered
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), report)

			if len(issues) > 0 {
				return &domain.IssuesError{Issues: issues}
			}
			return nil
		},
	}
}
