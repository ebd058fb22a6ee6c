package domain

import "fmt"

// StateRef addresses a state declared in a GraphBuilder.
type StateRef int

// StateDef holds the declarations of a builder state. Children are refs so they
// can point at states defined later, at siblings, or at ancestors.
type StateDef struct {
	Triggers     []*Trigger
	Transitions  []*Transition
	Operations   []*Operation
	Capabilities []*Capability
	Children     []StateRef
}

// GraphBuilder assembles graphs whose nested states are shared or cyclic.
// States live in an arena until Build seals them; no State escapes before then.
type GraphBuilder struct {
	arena   []*State
	defs    []*StateDef
	current bool
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{current: true}
}

// Declare reserves a state named name and returns its ref.
func (b *GraphBuilder) Declare(name string) (StateRef, error) {
	if name == "" {
		return -1, nullArgument("state", "name")
	}
	b.arena = append(b.arena, &State{name: name})
	b.defs = append(b.defs, nil)
	return StateRef(len(b.arena) - 1), nil
}

// Name returns the name a ref was declared with.
func (b *GraphBuilder) Name(ref StateRef) string {
	if !b.valid(ref) {
		return ""
	}
	return b.arena[ref].name
}

// Define attaches declarations to a declared state. Each state is defined once.
func (b *GraphBuilder) Define(ref StateRef, def StateDef) error {
	if !b.valid(ref) {
		return fmt.Errorf("%w: unknown state ref %d", ErrMalformedGraph, ref)
	}
	if b.defs[ref] != nil {
		return &MalformedGraphError{Element: b.arena[ref].name, Reason: "state defined twice"}
	}
	for _, child := range def.Children {
		if !b.valid(child) {
			return fmt.Errorf("%w: unknown state ref %d", ErrMalformedGraph, child)
		}
	}
	b.defs[ref] = &def
	return nil
}

// Build validates every reachable definition and returns the sealed root.
func (b *GraphBuilder) Build(root StateRef) (*State, error) {
	if !b.current {
		return nil, fmt.Errorf("%w: builder already used", ErrMalformedGraph)
	}
	if !b.valid(root) {
		return nil, fmt.Errorf("%w: unknown root ref %d", ErrMalformedGraph, root)
	}
	for i, def := range b.defs {
		if def == nil {
			return nil, &MalformedGraphError{Element: b.arena[i].name, Reason: "state declared but never defined"}
		}
		children := make([]*State, len(def.Children))
		for j, ref := range def.Children {
			children[j] = b.arena[ref]
		}
		err := b.arena[i].define(StateSpec{
			Triggers:     def.Triggers,
			Transitions:  def.Transitions,
			Operations:   def.Operations,
			Capabilities: def.Capabilities,
			States:       children,
		})
		if err != nil {
			return nil, err
		}
	}
	b.current = false
	return b.arena[root], nil
}

func (b *GraphBuilder) valid(ref StateRef) bool {
	return ref >= 0 && int(ref) < len(b.arena)
}
