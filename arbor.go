package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// Machine is an interpreter positioned on the engine's graph.
type Machine = runtime.Machine

// MachineOption configures a single Machine.
type MachineOption = runtime.Option

var (
	// WithMachineID sets the identifier of a machine.
	WithMachineID = runtime.WithID
	// WithMachineExecutor overrides the engine executor for one machine.
	WithMachineExecutor = runtime.WithExecutor
	// WithMachineDispatcher makes one machine post to a shared dispatcher.
	WithMachineDispatcher = runtime.WithDispatcher
)

// Engine is the high-level entry point for the Arbor library.
// It owns one immutable graph and creates machines that interpret it.
type Engine struct {
	loader   ports.GraphLoader
	executor ports.OperationExecutor
	tracer   trace.Tracer
	logger   *slog.Logger
	strict   bool
	Name     string

	mu   sync.RWMutex
	root *domain.State
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom GraphLoader, bypassing the default file loader.
func WithLoader(l ports.GraphLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithExecutor sets the collaborator that runs delegated operations for every machine.
func WithExecutor(executor ports.OperationExecutor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer enables OpenTelemetry spans on every machine.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithStrictValidation makes New and Reload fail when the graph has validation issues.
func WithStrictValidation() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// New loads the graph document at path and returns an engine for it.
// If WithLoader option is provided, path is only used as a descriptive name.
func New(path string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if path == "" {
			return nil, fmt.Errorf("path is required when no custom loader is provided")
		}
		eng.loader = file.New(path)
	}
	if path != "" {
		eng.Name = filepath.Base(path)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("graph", eng.Name)
	}

	if err := eng.Reload(context.Background()); err != nil {
		return nil, err
	}
	return eng, nil
}

// Reload loads the graph again. Machines already created keep the graph they started with.
func (e *Engine) Reload(ctx context.Context) error {
	root, err := e.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	if issues := validator.Validate(root); len(issues) > 0 {
		if e.strict {
			return &domain.IssuesError{Issues: issues}
		}
		for _, issue := range issues {
			e.logger.Warn("graph validation issue", "key", issue.Key, "message", issue.Message)
		}
	}

	e.mu.Lock()
	e.root = root
	e.mu.Unlock()
	e.logger.Debug("graph loaded", "root", root.Name())
	return nil
}

// Graph returns the root state of the current graph.
func (e *Engine) Graph() *domain.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

// Validate reports every unresolved reference in the current graph.
func (e *Engine) Validate() []domain.Issue {
	return validator.Validate(e.Graph())
}

// NewMachine creates an uninitialized machine on the current graph.
// Machine options override the engine defaults.
func (e *Engine) NewMachine(opts ...MachineOption) (*Machine, error) {
	base := []runtime.Option{runtime.WithLogger(e.logger)}
	if e.executor != nil {
		base = append(base, runtime.WithExecutor(e.executor))
	}
	if e.tracer != nil {
		base = append(base, runtime.WithTracer(e.tracer))
	}
	return runtime.New(e.Graph(), append(base, opts...)...)
}
