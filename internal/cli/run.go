package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/muesli/termenv"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	GraphPath  string
	Format     string // xml or yaml, empty to infer from the extension
	Strict     bool
	Operations string // operations.yaml; empty to echo every operation
	Watch      bool
	Debug      bool
	Color      bool     // Style output for a terminal
	Fail       []string // Operations the echo executor reports as failed
}

// Execute runs an interactive session on the graph until the user quits or a
// signal arrives.
func Execute(opts RunOptions, in io.Reader, out io.Writer) error {
	logger := createLogger(opts.Debug)
	w := &syncWriter{w: out}

	profile := termenv.Ascii
	if opts.Color {
		profile = termenv.ColorProfile()
		tui.PrintBanner(w)
	}

	fail := make(map[string]bool, len(opts.Fail))
	for _, name := range opts.Fail {
		fail[name] = true
	}
	executor, err := createExecutor(opts.Operations, w, echoExecutor(w, fail), logger)
	if err != nil {
		return err
	}
	engine, err := createEngine(opts, logger, executor)
	if err != nil {
		return err
	}

	sigCtx := newSignalContext(context.Background())
	defer sigCtx.Stop()

	session, err := NewSession(engine, w, tui.NewStyler(profile), logger)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.Close()

	var reload <-chan struct{}
	if opts.Watch {
		reload, err = WatchFile(sigCtx, opts.GraphPath, 100*time.Millisecond, logger)
		if err != nil {
			return err
		}
		printSystemMessage(w, "Watching '%s' for changes.", opts.GraphPath)
	}
	printSystemMessage(w, "Machine %s ready. Type 'help' for commands.", session.Machine().ID())

	runErr := session.Run(sigCtx, in, reload)
	if sig := sigCtx.Signal(); sig != nil {
		printSystemMessage(w, "Interrupted at '%s' state.", session.Machine().State().Name())
	}
	return handleExecutionError(runErr)
}

// createLogger configures the application logger.
// In debug mode, it writes to Stderr (to separate from Stdout flow UI).
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}
