package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/process"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// createEngine initializes an engine with standard CLI conventions.
func createEngine(opts RunOptions, logger *slog.Logger, executor ports.OperationExecutor) (*arbor.Engine, error) {
	engineOpts := []arbor.Option{arbor.WithLogger(logger)}
	if opts.Format != "" {
		engineOpts = append(engineOpts, arbor.WithLoader(file.New(opts.GraphPath, file.WithFormat(compiler.Format(opts.Format)))))
	}
	if opts.Strict {
		engineOpts = append(engineOpts, arbor.WithStrictValidation())
	}
	if executor != nil {
		engineOpts = append(engineOpts, arbor.WithExecutor(executor))
	}

	engine, err := arbor.New(opts.GraphPath, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// createExecutor runs the operations registered in the operations file as
// local processes and hands every other operation to fallback.
func createExecutor(path string, w io.Writer, fallback ports.OperationExecutor, logger *slog.Logger) (ports.OperationExecutor, error) {
	if path == "" {
		return fallback, nil
	}
	ops, err := process.LoadOperations(path)
	if err != nil {
		return nil, err
	}
	return process.NewRunner(
		process.WithRegistry(ops),
		process.WithFallback(fallback),
		process.WithBaseDir(filepath.Dir(path)),
		process.WithOutput(w),
		process.WithLogger(logger),
	), nil
}

// echoExecutor stands in for a managed instance: it prints every operation it is
// asked to run and fails the ones listed in fail.
func echoExecutor(w io.Writer, fail map[string]bool) ports.OperationExecutor {
	return ports.ExecutorFunc(func(_ context.Context, op *domain.Operation, arg any) error {
		if arg != nil {
			data, _ := json.Marshal(arg)
			fmt.Fprintf(w, "⚙ %s %s\n", op.Name(), data)
		} else {
			fmt.Fprintf(w, "⚙ %s\n", op.Name())
		}
		if fail[op.Name()] {
			return fmt.Errorf("simulated failure")
		}
		return nil
	})
}
