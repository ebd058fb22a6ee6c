package dsl

import (
	"fmt"

	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

// StateBuilder configures one state of the graph. Methods return the builder
// so calls can be chained; State descends into a child and End climbs back.
type StateBuilder struct {
	node     compiler.StateNode
	parent   *StateBuilder
	children []*StateBuilder
}

// New starts a graph whose root state is called name.
func New(name string) *StateBuilder {
	return &StateBuilder{node: compiler.StateNode{Name: name}}
}

// State adds a nested state and returns its builder.
func (b *StateBuilder) State(name string) *StateBuilder {
	child := &StateBuilder{node: compiler.StateNode{Name: name}, parent: b}
	b.children = append(b.children, child)
	return child
}

// Ref nests the state defined elsewhere in the graph under name.
// The same state object then appears at both places.
func (b *StateBuilder) Ref(name string) *StateBuilder {
	b.children = append(b.children, &StateBuilder{node: compiler.StateNode{Ref: name}, parent: b})
	return b
}

// End returns the enclosing state's builder, or b itself at the root.
func (b *StateBuilder) End() *StateBuilder {
	if b.parent == nil {
		return b
	}
	return b.parent
}

// Go declares a transition.
func (b *StateBuilder) Go(name, target string) *StateBuilder {
	b.node.Transitions = append(b.node.Transitions, compiler.TransitionNode{Name: name, Target: target})
	return b
}

// GoDo declares a transition that runs operation before it moves.
func (b *StateBuilder) GoDo(name, target, operation string) *StateBuilder {
	b.node.Transitions = append(b.node.Transitions, compiler.TransitionNode{
		Name:      name,
		Target:    target,
		Operation: &compiler.OperationNode{Name: operation},
	})
	return b
}

// Operation declares invocable operations.
func (b *StateBuilder) Operation(names ...string) *StateBuilder {
	for _, name := range names {
		b.node.Operations = append(b.node.Operations, compiler.OperationNode{Name: name})
	}
	return b
}

// Capability binds capabilities to the state.
func (b *StateBuilder) Capability(names ...string) *StateBuilder {
	for _, name := range names {
		b.node.Capabilities = append(b.node.Capabilities, compiler.CapabilityNode{Name: name})
	}
	return b
}

// OnInitialize fires the transition when the machine initializes.
func (b *StateBuilder) OnInitialize(name, target string) *StateBuilder {
	return b.trigger(domain.EventInitialization, &compiler.TransitionNode{Name: name, Target: target}, nil)
}

// OnInitializeDo runs operation when the machine initializes.
func (b *StateBuilder) OnInitializeDo(operation string) *StateBuilder {
	return b.trigger(domain.EventInitialization, nil, &compiler.OperationNode{Name: operation})
}

// OnTerminate fires the transition when the machine terminates.
func (b *StateBuilder) OnTerminate(name, target string) *StateBuilder {
	return b.trigger(domain.EventTermination, &compiler.TransitionNode{Name: name, Target: target}, nil)
}

// OnTerminateDo runs operation when the machine terminates.
func (b *StateBuilder) OnTerminateDo(operation string) *StateBuilder {
	return b.trigger(domain.EventTermination, nil, &compiler.OperationNode{Name: operation})
}

func (b *StateBuilder) trigger(event domain.TriggerEvent, t *compiler.TransitionNode, op *compiler.OperationNode) *StateBuilder {
	b.node.Triggers = append(b.node.Triggers, compiler.TriggerNode{
		Event:      string(event),
		Transition: t,
		Operation:  op,
	})
	return b
}

// Node returns the syntax tree of the whole graph, whichever builder it is called on.
func (b *StateBuilder) Node() *compiler.StateNode {
	root := b
	for root.parent != nil {
		root = root.parent
	}
	return root.tree()
}

func (b *StateBuilder) tree() *compiler.StateNode {
	node := b.node
	node.States = make([]compiler.StateNode, 0, len(b.children))
	for _, child := range b.children {
		node.States = append(node.States, *child.tree())
	}
	return &node
}

// Build compiles the graph. It can be called from any builder in the tree.
func (b *StateBuilder) Build() (*domain.State, error) {
	root, err := compiler.Compile(b.Node())
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	return root, nil
}

// Loader compiles the graph into a memory loader.
func (b *StateBuilder) Loader() (*memory.Loader, error) {
	root, err := b.Build()
	if err != nil {
		return nil, err
	}
	return memory.NewFromState(root)
}
