package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/dispatch"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

const helpText = `commands:
  init [arg]         run the initialization action
  apply <name> [arg] fire a transition of the active state
  exec <name> [arg]  run an operation of the active state
  term [arg]         run the termination action
  state              show the cursor and what can be done next
  graph              print the graph with the cursor highlighted
  validate           report unresolved references
  reload             load the graph document again
  reset              dispose the machine and start over on the current graph
  quit               leave
arguments are parsed as JSON when possible, otherwise passed as text`

// Session drives one machine from line-oriented input.
type Session struct {
	engine     *arbor.Engine
	dispatcher *dispatch.Dispatcher
	machine    *arbor.Machine

	out    io.Writer
	styler *tui.Styler
	logger *slog.Logger
}

// NewSession creates a session with a fresh machine on the engine's graph.
// Events of the machine are printed to out.
func NewSession(engine *arbor.Engine, out io.Writer, styler *tui.Styler, logger *slog.Logger) (*Session, error) {
	s := &Session{
		engine:     engine,
		dispatcher: dispatch.New(dispatch.WithLogger(logger)),
		out:        out,
		styler:     styler,
		logger:     logger,
	}
	if err := s.reset(); err != nil {
		s.dispatcher.Close()
		return nil, err
	}
	return s, nil
}

// Machine returns the machine currently driven by the session.
func (s *Session) Machine() *arbor.Machine { return s.machine }

func (s *Session) reset() error {
	if s.machine != nil {
		s.machine.Dispose()
	}
	m, err := s.engine.NewMachine(arbor.WithMachineDispatcher(s.dispatcher))
	if err != nil {
		return err
	}
	m.Subscribe(ports.ListenerFunc(func(_ context.Context, e domain.StateChangeEvent) {
		fmt.Fprintln(s.out, s.styler.Event(e))
	}))
	s.machine = m
	return nil
}

// Close disposes the machine and stops event delivery.
func (s *Session) Close() error {
	s.machine.Dispose()
	return s.dispatcher.Close()
}

// Run reads commands from in until quit, end of input or ctx is done.
// Each value received on reload triggers an engine reload.
func (s *Session) Run(ctx context.Context, in io.Reader, reload <-chan struct{}) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		readErr <- err
	}()

	fmt.Fprintln(s.out, s.styler.State(s.machine.Path(), s.machine.Status()))
	for {
		fmt.Fprint(s.out, "> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(s.out)
			return err
		case _, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			fmt.Fprintln(s.out)
			s.Exec(ctx, "reload")
		case line := <-lines:
			if quit := s.Exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// Exec runs a single command line and reports whether the session should end.
func (s *Session) Exec(ctx context.Context, line string) (quit bool) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch cmd {
	case "":
		return false
	case "q", "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprintln(s.out, helpText)
		return false
	case "init":
		_, err = s.machine.Initialize(ctx, parseArg(rest))
	case "apply", "exec":
		name, arg, _ := strings.Cut(rest, " ")
		if name == "" {
			err = fmt.Errorf("usage: %s <name> [arg]", cmd)
			break
		}
		if cmd == "apply" {
			_, err = s.machine.Apply(ctx, name, parseArg(strings.TrimSpace(arg)))
		} else {
			err = s.machine.Execute(ctx, name, parseArg(strings.TrimSpace(arg)))
		}
	case "term", "terminate":
		_, err = s.machine.Terminate(ctx, parseArg(rest))
	case "state":
		// Printed below
	case "graph":
		fmt.Fprint(s.out, graph.GenerateMermaid(s.machine.Root(), &graph.GraphOverlay{Path: s.machine.Path()}))
		return false
	case "validate":
		issues := s.engine.Validate()
		if len(issues) == 0 {
			printSystemMessage(s.out, "Graph is valid.")
		}
		for _, issue := range issues {
			fmt.Fprintln(s.out, s.styler.Error(errors.New(issue.String())))
		}
		return false
	case "reload":
		if err = s.engine.Reload(ctx); err == nil {
			printSystemMessage(s.out, "Graph reloaded. Use 'reset' to start a machine on it.")
		}
	case "reset":
		if err = s.reset(); err == nil {
			printSystemMessage(s.out, "New machine %s.", s.machine.ID())
		}
	default:
		err = fmt.Errorf("unknown command %q (try 'help')", cmd)
	}

	// Print events before the status line
	if flushErr := s.dispatcher.Flush(ctx); flushErr != nil {
		s.logger.Debug("event flush interrupted", "err", flushErr)
	}
	if err != nil {
		fmt.Fprintln(s.out, s.styler.Error(err))
	}
	s.printChoices()
	return false
}

func (s *Session) printChoices() {
	m := s.machine
	fmt.Fprintln(s.out, s.styler.State(m.Path(), m.Status()))
	if m.Status() != domain.StatusActive {
		return
	}
	declared, err := m.Transitions()
	if err != nil {
		fmt.Fprintln(s.out, s.styler.Error(err))
		return
	}
	var transitions, operations []string
	for _, t := range declared {
		transitions = append(transitions, t.Name())
	}
	ops, _ := m.Operations()
	for _, o := range ops {
		operations = append(operations, o.Name())
	}
	fmt.Fprintln(s.out, s.styler.Choices("transitions", transitions))
	fmt.Fprintln(s.out, s.styler.Choices("operations", operations))
}

// parseArg decodes JSON arguments and falls back to the raw text.
func parseArg(text string) any {
	if text == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}
