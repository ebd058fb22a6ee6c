package runtime

import (
	"log/slog"

	"github.com/aretw0/arbor/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Machine.
type Option func(*Machine)

// WithID sets the machine identifier carried by every event.
// A random UUID is used when unset.
func WithID(id string) Option {
	return func(m *Machine) {
		if id != "" {
			m.id = id
		}
	}
}

// WithExecutor sets the collaborator that runs delegated operations.
func WithExecutor(executor ports.OperationExecutor) Option {
	return func(m *Machine) {
		m.executor = executor
	}
}

// WithDispatcher sets a dispatcher shared with other machines.
// The machine does not close a dispatcher it did not create.
func WithDispatcher(dispatcher ports.EventDispatcher) Option {
	return func(m *Machine) {
		if dispatcher != nil {
			m.dispatcher = dispatcher
			m.ownsDispatcher = false
		}
	}
}

// WithLogger sets the structured logger for the machine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracer enables spans around Initialize, Apply, Execute and Terminate.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Machine) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}
