package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/dispatch"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// CauseTerminated is the event cause recorded when termination resolves no
// action and the machine falls back to the implicit terminated state.
const CauseTerminated = "<terminate>"

// Machine interprets a state graph for one managed instance.
//
// The cursor is the full path from the root to the active state, so a shared
// state resolves names against the path it was entered by. Listeners are
// notified through the dispatcher, never from inside Apply. The executor runs
// while the machine is locked and must not call back into the same machine.
type Machine struct {
	id             string
	root           *domain.State
	executor       ports.OperationExecutor
	dispatcher     ports.EventDispatcher
	ownsDispatcher bool
	logger         *slog.Logger
	tracer         trace.Tracer

	mu       sync.Mutex
	path     []*domain.State
	status   domain.Status
	sequence uint64
	subs     []ports.Subscription
	pseudo   *domain.State
}

// New creates a machine positioned at root, in the uninitialized status.
func New(root *domain.State, opts ...Option) (*Machine, error) {
	if root == nil {
		return nil, &domain.NullArgumentError{Type: "machine", Field: "root"}
	}
	m := &Machine{
		id:             uuid.NewString(),
		root:           root,
		logger:         logging.NewNop(),
		tracer:         noop.NewTracerProvider().Tracer("arbor"),
		ownsDispatcher: true,
		path:           []*domain.State{root},
		status:         domain.StatusUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dispatcher == nil {
		m.dispatcher = dispatch.New(dispatch.WithLogger(m.logger))
		m.ownsDispatcher = true
	}
	m.logger = m.logger.With("machine_id", m.id)
	return m, nil
}

// ID returns the machine identifier.
func (m *Machine) ID() string { return m.id }

// Root returns the root of the interpreted graph.
func (m *Machine) Root() *domain.State { return m.root }

// Status returns the lifecycle status.
func (m *Machine) Status() domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// State returns the active state.
func (m *Machine) State() *domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current()
}

// Path returns the scope chain of the active state, root first.
func (m *Machine) Path() []*domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.path)
}

// Transitions returns the transitions Apply accepts at the current position.
func (m *Machine) Transitions() ([]*domain.Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDisposed("transitions"); err != nil {
		return nil, err
	}
	return m.current().Transitions(), nil
}

// Operations returns the operations Execute accepts at the current position.
func (m *Machine) Operations() ([]*domain.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDisposed("operations"); err != nil {
		return nil, err
	}
	return m.current().Operations(), nil
}

// Capabilities returns the capability bindings active along the scope chain, nearest first.
func (m *Machine) Capabilities() ([]*domain.Capability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDisposed("capabilities"); err != nil {
		return nil, err
	}
	return domain.ActiveCapabilities(m.path), nil
}

// InitializationAction returns the action of the root's initialization trigger, or nil.
// It does not depend on the cursor.
func (m *Machine) InitializationAction() (domain.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDisposed("initialization action"); err != nil {
		return nil, err
	}
	if t := m.root.Trigger(domain.EventInitialization); t != nil {
		return t.Action(), nil
	}
	return nil, nil
}

// TerminationAction returns the nearest termination action along the current
// scope chain, or nil when no state in the chain declares one.
func (m *Machine) TerminationAction() (domain.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDisposed("termination action"); err != nil {
		return nil, err
	}
	if t, _ := domain.ResolveTrigger(m.path, domain.EventTermination); t != nil {
		return t.Action(), nil
	}
	return nil, nil
}

// checkDisposed must be called with mu held.
func (m *Machine) checkDisposed(operation string) error {
	if m.status == domain.StatusDisposed {
		return &domain.InvalidStateError{Operation: operation, Status: m.status}
	}
	return nil
}

// Subscribe registers a state-change listener. Subscriptions made through the
// machine are removed when it is disposed.
func (m *Machine) Subscribe(listener ports.Listener) ports.Subscription {
	sub := m.dispatcher.Subscribe(listener)
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return sub
}

// Unsubscribe removes a listener registered with Subscribe.
func (m *Machine) Unsubscribe(sub ports.Subscription) {
	m.dispatcher.Unsubscribe(sub)
	m.mu.Lock()
	m.subs = slices.DeleteFunc(m.subs, func(s ports.Subscription) bool { return s == sub })
	m.mu.Unlock()
}

// Initialize runs the root's initialization action. A transition moves the
// cursor exactly as Apply would; the initialization trigger is then resolved
// again from the new position and run, until no new action is found.
// An operation runs through the executor and leaves the cursor in place.
func (m *Machine) Initialize(ctx context.Context, arg any) (*domain.State, error) {
	ctx, span := m.tracer.Start(ctx, "arbor.Initialize", trace.WithAttributes(attribute.String("arbor.machine_id", m.id)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusUninitialized {
		return m.current(), m.fail(span, &domain.InvalidStateError{Operation: "initialize", Status: m.status})
	}

	var first domain.Action
	if t := m.root.Trigger(domain.EventInitialization); t != nil {
		first = t.Action()
	}
	err := m.chain(ctx, domain.EventInitialization, first, []*domain.State{m.root}, arg, func() {
		m.status = domain.StatusActive
	})
	if err != nil {
		return m.current(), m.fail(span, err)
	}
	m.status = domain.StatusActive
	m.logger.Debug("machine initialized", "state", m.current().Name())
	return m.current(), nil
}

// Apply fires the transition named name, which must be declared on the active
// state. On any failure the cursor is left unchanged.
func (m *Machine) Apply(ctx context.Context, name string, arg any) (*domain.State, error) {
	ctx, span := m.tracer.Start(ctx, "arbor.Apply", trace.WithAttributes(
		attribute.String("arbor.machine_id", m.id),
		attribute.String("arbor.transition", name),
	))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusActive {
		return m.current(), m.fail(span, &domain.InvalidStateError{Operation: "apply", Status: m.status})
	}
	current := m.current()
	transition := current.Transition(name)
	if transition == nil {
		return current, m.fail(span, &domain.UnknownTransitionError{Transition: name, State: current.Name()})
	}
	if err := m.fire(ctx, transition, m.path, arg); err != nil {
		return current, m.fail(span, err)
	}
	return m.current(), nil
}

// Execute runs the operation named name, which must be declared on the active
// state, through the executor. The cursor does not move.
func (m *Machine) Execute(ctx context.Context, name string, arg any) error {
	ctx, span := m.tracer.Start(ctx, "arbor.Execute", trace.WithAttributes(
		attribute.String("arbor.machine_id", m.id),
		attribute.String("arbor.operation", name),
	))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusActive {
		return m.fail(span, &domain.InvalidStateError{Operation: "execute", Status: m.status})
	}
	op := m.current().Operation(name)
	if op == nil {
		return m.fail(span, &domain.UnknownOperationError{Operation: name, State: m.current().Name()})
	}
	return m.fail(span, m.execute(ctx, op, arg))
}

// Terminate runs the termination action resolved from the current scope chain,
// chaining like Initialize. When no action resolves, the machine moves to the
// implicit terminated state. Either way the machine ends up terminated and
// accepts no further transitions.
func (m *Machine) Terminate(ctx context.Context, arg any) (*domain.State, error) {
	ctx, span := m.tracer.Start(ctx, "arbor.Terminate", trace.WithAttributes(attribute.String("arbor.machine_id", m.id)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusActive {
		return m.current(), m.fail(span, &domain.InvalidStateError{Operation: "terminate", Status: m.status})
	}

	trigger, at := domain.ResolveTrigger(m.path, domain.EventTermination)
	if trigger == nil {
		m.moveTo([]*domain.State{m.root, m.terminatedState()}, CauseTerminated)
		m.status = domain.StatusTerminated
		m.logger.Debug("machine terminated implicitly")
		return m.current(), nil
	}

	err := m.chain(ctx, domain.EventTermination, trigger.Action(), m.path[:at+1], arg, nil)
	if err != nil {
		return m.current(), m.fail(span, err)
	}
	m.status = domain.StatusTerminated
	m.logger.Debug("machine terminated", "state", m.current().Name())
	return m.current(), nil
}

// Dispose moves the machine to the disposed status. It is idempotent and always
// legal. Events still queued on a dispatcher owned by the machine are dropped.
func (m *Machine) Dispose() error {
	m.mu.Lock()
	if m.status == domain.StatusDisposed {
		m.mu.Unlock()
		return nil
	}
	m.status = domain.StatusDisposed
	subs := m.subs
	m.subs = nil
	var event domain.StateChangeEvent
	if !m.ownsDispatcher {
		m.sequence++
		name := m.current().Name()
		event = domain.StateChangeEvent{
			Type:      domain.EventDisposed,
			MachineID: m.id,
			Sequence:  m.sequence,
			OldState:  name,
			NewState:  name,
			Timestamp: time.Now(),
		}
	}
	m.mu.Unlock()

	m.logger.Debug("machine disposed")
	if !m.ownsDispatcher {
		m.dispatcher.Post(event)
		for _, sub := range subs {
			m.dispatcher.Unsubscribe(sub)
		}
		return nil
	}
	return m.dispatcher.Close()
}

// chain runs action and then keeps re-resolving the trigger for event from the
// new cursor, stopping at an operation, at a missing trigger or at an action
// that already ran. declaring is the scope the first action was declared in.
// started, when set, is called once the first action has succeeded.
func (m *Machine) chain(ctx context.Context, event domain.TriggerEvent, action domain.Action, declaring []*domain.State, arg any, started func()) error {
	seen := make(map[domain.Action]bool)
	for action != nil && !seen[action] {
		seen[action] = true
		switch a := action.(type) {
		case *domain.Operation:
			if err := m.execute(ctx, a, arg); err != nil {
				return err
			}
			return nil
		case *domain.Transition:
			if err := m.fire(ctx, a, declaring, arg); err != nil {
				return err
			}
		}
		if started != nil {
			started()
			started = nil
		}

		trigger, at := domain.ResolveTrigger(m.path, event)
		if trigger == nil {
			return nil
		}
		action, declaring = trigger.Action(), m.path[:at+1]
	}
	return nil
}

// fire resolves the target of t relative to declaring, runs its operation and
// moves the cursor. Nothing changes if resolution or the operation fails.
func (m *Machine) fire(ctx context.Context, t *domain.Transition, declaring []*domain.State, arg any) error {
	target, err := domain.ResolveTarget(declaring, t.Target())
	if err != nil {
		return err
	}
	if op := t.Operation(); op != nil {
		if err := m.execute(ctx, op, arg); err != nil {
			return err
		}
	}
	m.moveTo(target, t.Name())
	return nil
}

func (m *Machine) execute(ctx context.Context, op *domain.Operation, arg any) error {
	if m.executor == nil {
		m.logger.Debug("no executor, skipping operation", "operation", op.Name())
		return nil
	}
	if err := m.executor.Execute(ctx, op, arg); err != nil {
		return fmt.Errorf("operation %q: %w", op.Name(), err)
	}
	return nil
}

// moveTo sets the cursor. Following a cycle back to a state already on the
// chain returns to that occurrence, so the chain never holds a state twice.
func (m *Machine) moveTo(path []*domain.State, cause string) {
	old := m.current()
	target := path[len(path)-1]
	if i := slices.Index(path[:len(path)-1], target); i >= 0 {
		path = path[:i+1]
	}
	m.path = slices.Clip(path)
	m.sequence++
	m.logger.Debug("state changed", "from", old.Name(), "to", m.current().Name(), "cause", cause, "sequence", m.sequence)
	m.dispatcher.Post(domain.StateChangeEvent{
		Type:      domain.EventStateChanged,
		MachineID: m.id,
		Sequence:  m.sequence,
		OldState:  old.Name(),
		NewState:  m.current().Name(),
		Cause:     cause,
		Timestamp: time.Now(),
	})
}

func (m *Machine) current() *domain.State {
	return m.path[len(m.path)-1]
}

// terminatedState returns the implicit terminal pseudo-state, which is not part of the graph.
func (m *Machine) terminatedState() *domain.State {
	if m.pseudo == nil {
		m.pseudo, _ = domain.NewState(domain.TerminatedStateName, domain.StateSpec{})
	}
	return m.pseudo
}

func (m *Machine) fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
