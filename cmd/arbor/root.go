package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "arbor",
		Short:         "Arbor interprets hierarchical lifecycle state machines",
		Long:          `Arbor loads a declarative graph of nested states (XML or YAML), validates it, and drives machines over it interactively or through an HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to an arbor.yaml configuration file")
	rootCmd.PersistentFlags().StringP("graph", "g", "", "Path to the graph document (or pass it as the first argument)")
	rootCmd.PersistentFlags().String("format", "", "Graph document format: xml or yaml (default: from the extension)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("strict", false, "Refuse to load a graph with unresolved references")
	rootCmd.PersistentFlags().String("operations", "", "Path to an operations.yaml mapping operations to commands")

	rootCmd.AddCommand(
		newValidateCmd(),
		newGraphCmd(),
		newRunCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig merges the configuration file, the environment and the flags, in
// increasing order of precedence. A positional argument names the graph.
func loadConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("graph") {
		cfg.Graph, _ = flags.GetString("graph")
	} else if len(args) > 0 {
		cfg.Graph = args[0]
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("strict") {
		cfg.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("operations") {
		cfg.Operations, _ = flags.GetString("operations")
	}

	if cfg.Graph == "" {
		return cfg, fmt.Errorf("no graph document: pass a path, --graph or set graph in the config")
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays usable for documents and diagrams.
func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

func newEngine(cfg config.Config, logger *slog.Logger, opts ...arbor.Option) (*arbor.Engine, error) {
	base := []arbor.Option{arbor.WithLogger(logger)}
	if cfg.Format != "" {
		base = append(base, arbor.WithLoader(file.New(cfg.Graph, file.WithFormat(compiler.Format(cfg.Format)))))
	}
	if cfg.Strict {
		base = append(base, arbor.WithStrictValidation())
	}
	return arbor.New(cfg.Graph, append(base, opts...)...)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
