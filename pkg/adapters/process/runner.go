// Package process runs graph operations as local processes.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// ErrNotRegistered is returned for an operation that has no command and no fallback.
var ErrNotRegistered = errors.New("operation not registered")

// Runner is a ports.OperationExecutor that executes local processes.
// It follows a Strict Registry pattern for security (Allow-Listing): only
// operations registered by name ever start a process.
type Runner struct {
	registry map[string]ProcessConfig
	fallback ports.OperationExecutor
	baseDir  string
	output   io.Writer
	logger   *slog.Logger
}

var _ ports.OperationExecutor = (*Runner)(nil)

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(ops map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for _, op := range ops {
			r.registry[op.Name] = op
		}
	}
}

// WithFallback runs operations without a command through executor.
func WithFallback(executor ports.OperationExecutor) RunnerOption {
	return func(r *Runner) {
		r.fallback = executor
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithOutput copies the standard output of every process to w.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.output = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ProcessConfig),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted script/command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ProcessConfig{
		Name:    name,
		Command: command,
		Args:    args,
	}
}

var envKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Execute implements ports.OperationExecutor.
//
// The argument never reaches the command line. It is passed through the
// environment instead: ARBOR_OPERATION holds the operation name, ARBOR_ARG the
// argument (JSON unless it is a scalar) and, for an object argument, one
// ARBOR_ARG_<KEY> variable per field.
func (r *Runner) Execute(ctx context.Context, op *domain.Operation, arg any) error {
	proc, ok := r.registry[op.Name()]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Execute(ctx, op, arg)
		}
		return fmt.Errorf("%w: %s", ErrNotRegistered, op.Name())
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir

	env := []string{"ARBOR_OPERATION=" + op.Name()}
	if arg != nil {
		env = append(env, "ARBOR_ARG="+encodeValue(arg))
	}
	if fields, ok := arg.(map[string]any); ok {
		for k, v := range fields {
			key := envKey.ReplaceAllString(strings.ToUpper(k), "_")
			env = append(env, fmt.Sprintf("ARBOR_ARG_%s=%s", key, encodeValue(v)))
		}
	}
	for k, v := range proc.Environment {
		env = append(env, k+"="+v)
	}
	cmd.Env = append(cmd.Environ(), env...)

	// Capture Output
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running operation", "operation", op.Name(), "command", proc.Command)
	err := cmd.Run()
	if r.output != nil && stdout.Len() > 0 {
		r.output.Write(stdout.Bytes())
	}
	if err != nil {
		// Combine error message with stderr for context
		return fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// encodeValue renders primitives as text and everything else as JSON.
func encodeValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	// Fallback to Go format if marshal fails
	return fmt.Sprintf("%v", v)
}
