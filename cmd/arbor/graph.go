package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [graph]",
		Short: "Export the graph visualization",
		Long: `Outputs a Mermaid diagram (graph TD) of the state graph.
With --output xml or --output yaml the graph is written back as a document instead,
which also converts between the two formats.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			markdown, _ := cmd.Flags().GetBool("markdown")
			out := cmd.OutOrStdout()
			switch output {
			case "mermaid":
				diagram := graph.GenerateMermaid(engine.Graph(), nil)
				if markdown {
					diagram = tui.GraphMarkdown(diagram)
				}
				fmt.Fprint(out, diagram)
				return nil
			case string(compiler.FormatXML), string(compiler.FormatYAML):
				return compiler.Encode(out, engine.Graph(), compiler.Format(output))
			}
			return fmt.Errorf("unknown output %q (mermaid, xml or yaml)", output)
		},
	}
	cmd.Flags().StringP("output", "o", "mermaid", "Output: mermaid, xml or yaml")
	cmd.Flags().Bool("markdown", false, "Wrap the Mermaid diagram in a fenced markdown block")
	return cmd
}
