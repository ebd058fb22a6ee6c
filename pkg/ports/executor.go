package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// OperationExecutor performs a named operation against the live managed instance.
// The engine decides which operation applies; the executor is the only place the
// host's code actually runs.
type OperationExecutor interface {
	Execute(ctx context.Context, op *domain.Operation, arg any) error
}

// ExecutorFunc adapts a function to the OperationExecutor interface.
type ExecutorFunc func(ctx context.Context, op *domain.Operation, arg any) error

// Execute implements OperationExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, op *domain.Operation, arg any) error {
	return f(ctx, op, arg)
}
